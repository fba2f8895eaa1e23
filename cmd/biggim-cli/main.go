package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/common/config"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/gateway/httpclient"
	"github.com/ncats/biggim-gateway/pkg/interactions"
	"github.com/ncats/biggim-gateway/pkg/normalizer"
	"github.com/ncats/biggim-gateway/pkg/reference"
	"github.com/ncats/biggim-gateway/pkg/reshape"
)

const usage = `biggim-cli.

Usage:
  biggim-cli query --table=<table> [--ids1=<ids>] [--ids2=<ids>] [--columns=<columns>]
                   [--restriction-bool=<expr>] [--restriction-lt=<expr>] [--restriction-gt=<expr>]
                   [--restriction-join=<join>] [--limit=<n>] [--post] [--max-wait=<duration>]
                   [--base-url=<url>] [--column-metadata=<path>]
  biggim-cli tissue <identifier> [--lookup] [--base-url=<url>] [--tissue-synonyms=<path>]
  biggim-cli reshape <csv> [--column-metadata=<path>]
  biggim-cli -h | --help

Options:
  -h --help                   Show this screen.
  --table=<table>             BigGIM table to query.
  --ids1=<ids>                Comma separated Entrez gene ids.
  --ids2=<ids>                Comma separated Entrez gene ids for the second gene.
  --columns=<columns>         Comma separated result columns.
  --restriction-bool=<expr>   Boolean column restrictions.
  --restriction-lt=<expr>     Less-than column restrictions.
  --restriction-gt=<expr>     Greater-than column restrictions.
  --restriction-join=<join>   How restrictions combine (intersect or union).
  --limit=<n>                 Maximum number of rows.
  --post                      Submit the query with POST instead of GET.
  --max-wait=<duration>       Give up on a running query after this long.
  --base-url=<url>            BigGIM API base URL (default BIGGIM_BASE_URL).
  --lookup                    Also fetch the tissue metadata upstream.
  --column-metadata=<path>    Column metadata table (default bundled).
  --tissue-synonyms=<path>    Tissue synonym table (default bundled).
`

func str(args docopt.Opts, key string) string {
	s, _ := args[key].(string)
	return s
}

func flag(args docopt.Opts, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func main() {
	args, err := docopt.ParseDoc(usage)
	handleError(err, "Error parsing arguments")

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger.InitWithLevel(level)
	logger.Log.SetOutput(os.Stderr)
	cfg := config.Load()
	if baseURL := str(args, "--base-url"); baseURL != "" {
		cfg.BigGIMBaseURL = baseURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case flag(args, "query"):
		handleError(runQuery(ctx, cfg, args), "Query failed")
	case flag(args, "tissue"):
		handleError(runTissue(ctx, cfg, args), "Tissue lookup failed")
	case flag(args, "reshape"):
		handleError(runReshape(args), "Reshape failed")
	}
}

func runQuery(ctx context.Context, cfg *config.Config, args docopt.Opts) error {
	columns, err := reference.LoadColumns(str(args, "--column-metadata"))
	if err != nil {
		return err
	}

	maxWait := cfg.PollMaxWait
	if raw := str(args, "--max-wait"); raw != "" {
		if maxWait, err = time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid --max-wait: %w", err)
		}
	}
	if raw := str(args, "--limit"); raw != "" {
		if _, err := strconv.Atoi(raw); err != nil {
			return fmt.Errorf("invalid --limit: %w", err)
		}
	}

	client := biggim.NewClient(cfg.BigGIMBaseURL, httpclient.New(cfg.UpstreamTimeout))
	poller := biggim.NewPoller(client, biggim.WithInterval(cfg.PollInterval), biggim.WithMaxWait(maxWait))
	service := interactions.NewService(poller, reshape.New(columns, client))

	method := http.MethodGet
	if flag(args, "--post") {
		method = http.MethodPost
	}
	result, err := service.Query(ctx, method, biggim.QueryParams{
		Table:           str(args, "--table"),
		Columns:         str(args, "--columns"),
		IDs1:            str(args, "--ids1"),
		IDs2:            str(args, "--ids2"),
		RestrictionBool: str(args, "--restriction-bool"),
		RestrictionLT:   str(args, "--restriction-lt"),
		RestrictionGT:   str(args, "--restriction-gt"),
		RestrictionJoin: str(args, "--restriction-join"),
		Limit:           str(args, "--limit"),
	})
	if err != nil {
		return err
	}
	return printJSON(result.Records)
}

func runTissue(ctx context.Context, cfg *config.Config, args docopt.Opts) error {
	tissues, err := reference.LoadTissues(str(args, "--tissue-synonyms"))
	if err != nil {
		return err
	}
	identifier := str(args, "<identifier>")
	label := normalizer.NewTissueResolver(tissues).Resolve(identifier)
	if !flag(args, "--lookup") {
		fmt.Println(label)
		return nil
	}

	client := biggim.NewClient(cfg.BigGIMBaseURL, httpclient.New(cfg.UpstreamTimeout))
	var body json.RawMessage
	if err := client.Get(ctx, "metadata/tissue/"+url.PathEscape(label), nil, &body); err != nil {
		return fmt.Errorf("'%s' is not a valid tissue name or identifier: %w", identifier, biggim.AsNotFound(err, "tissue", identifier))
	}
	return printJSON(body)
}

func runReshape(args docopt.Opts) error {
	columns, err := reference.LoadColumns(str(args, "--column-metadata"))
	if err != nil {
		return err
	}
	f, err := os.Open(str(args, "<csv>"))
	if err != nil {
		return err
	}
	defer f.Close()

	table, err := reshape.ReadTable(f)
	if err != nil {
		return err
	}
	records, err := reshape.New(columns, nil).ReshapeTable(table)
	if err != nil {
		return err
	}
	return printJSON(records)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func handleError(err error, message string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
		os.Exit(1)
	}
}
