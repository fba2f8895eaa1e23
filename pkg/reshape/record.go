package reshape

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ncats/biggim-gateway/pkg/reference"
)

const (
	ColumnGene1 = "Gene1"
	ColumnGene2 = "Gene2"
	ColumnGPID  = "GPID"

	keyCancerType = "cancer_type"
	keyTissue     = "tissue"
)

// Observation is the set of metrics one source reports for a single tissue or
// cancer type. It serializes as a flat object: the metric types as keys next
// to cancer_type and tissue.
type Observation struct {
	Metrics    map[string]interface{}
	CancerType *string
	Tissue     *reference.Tissue
}

func (o Observation) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(o.Metrics)+2)
	for k, v := range o.Metrics {
		out[k] = v
	}
	out[keyCancerType] = o.CancerType
	out[keyTissue] = o.Tissue
	return json.Marshal(out)
}

func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*o = Observation{Metrics: make(map[string]interface{}, len(raw))}
	for k, v := range raw {
		switch k {
		case keyCancerType:
			if err := json.Unmarshal(v, &o.CancerType); err != nil {
				return fmt.Errorf("decoding cancer_type: %w", err)
			}
		case keyTissue:
			if err := json.Unmarshal(v, &o.Tissue); err != nil {
				return fmt.Errorf("decoding tissue: %w", err)
			}
		default:
			value, err := decodeNumber(v)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
			o.Metrics[k] = value
		}
	}
	return nil
}

// Record is one gene pair with its observations grouped by source.
type Record struct {
	Gene1   interface{}   `json:"Gene1"`
	Gene2   interface{}   `json:"Gene2"`
	GPID    interface{}   `json:"GPID"`
	GIANT   []Observation `json:"GIANT"`
	GTEx    []Observation `json:"GTEx"`
	BioGRID []Observation `json:"BioGRID"`
	TCGA    []Observation `json:"TCGA"`
}

func newRecord(gene1, gene2, gpid interface{}) Record {
	return Record{
		Gene1:   gene1,
		Gene2:   gene2,
		GPID:    gpid,
		GIANT:   []Observation{},
		GTEx:    []Observation{},
		BioGRID: []Observation{},
		TCGA:    []Observation{},
	}
}

// Source returns the observation list for src.
func (r *Record) Source(src reference.Source) *[]Observation {
	switch src {
	case reference.SourceGIANT:
		return &r.GIANT
	case reference.SourceGTEx:
		return &r.GTEx
	case reference.SourceBioGRID:
		return &r.BioGRID
	case reference.SourceTCGA:
		return &r.TCGA
	}
	return nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*r = Record(p)
	for _, src := range reference.Sources {
		if list := r.Source(src); *list == nil {
			*list = []Observation{}
		}
	}
	return nil
}

func decodeNumber(data []byte) (interface{}, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
