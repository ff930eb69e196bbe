// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"time"

	"github.com/gvern/soxauto/internal/dataset"
)

// EventType classifies one transformation event.
type EventType string

const (
	EventRename EventType = "rename"
	EventCast   EventType = "cast"
	EventDrop   EventType = "drop"
	EventFill   EventType = "fill"
	EventAdd    EventType = "add"
)

// Stage names the step of contract application that produced an event.
type Stage string

const (
	StageNameNormalization Stage = "name_normalization"
	StageTypeCoercion      Stage = "type_coercion"
	StageFillPolicy        Stage = "fill_policy"
	StageUnknownColumns    Stage = "unknown_columns"
)

// TransformEvent is one atomic, auditable change.
type TransformEvent struct {
	Seq                 int          `json:"seq" yaml:"seq"`
	EventType           EventType    `json:"event_type" yaml:"event_type"`
	Stage               Stage        `json:"stage" yaml:"stage"`
	Column              string       `json:"column" yaml:"column"`
	BeforeName          string       `json:"before_name,omitempty" yaml:"before_name,omitempty"`
	AfterName           string       `json:"after_name,omitempty" yaml:"after_name,omitempty"`
	BeforeType          dataset.Type `json:"before_type,omitempty" yaml:"before_type,omitempty"`
	AfterType           dataset.Type `json:"after_type,omitempty" yaml:"after_type,omitempty"`
	InvalidCoercedCount *int         `json:"invalid_coerced_count,omitempty" yaml:"invalid_coerced_count,omitempty"`
	FilledCount         *int         `json:"filled_count,omitempty" yaml:"filled_count,omitempty"`
	Timestamp           time.Time    `json:"timestamp" yaml:"timestamp"`
}

// CastInfo describes the coercion applied to one canonical column.
// InvalidCoercedCount counts values that became missing only because they
// could not be coerced; it is nil when tracking is disabled.
type CastInfo struct {
	BeforeType          dataset.Type `json:"before_type" yaml:"before_type"`
	AfterType           dataset.Type `json:"after_type" yaml:"after_type"`
	InvalidCoercedCount *int         `json:"invalid_coerced_count,omitempty" yaml:"invalid_coerced_count,omitempty"`
}

// TypeChanged reports whether the cast changed the column type.
func (c CastInfo) TypeChanged() bool {
	return c.BeforeType != c.AfterType
}

// Summary holds the counts that are produced even when tracking is off.
type Summary struct {
	RowCount       int `json:"row_count" yaml:"row_count"`
	Renamed        int `json:"renamed" yaml:"renamed"`
	Cast           int `json:"cast" yaml:"cast"`
	Filled         int `json:"filled" yaml:"filled"`
	Dropped        int `json:"dropped" yaml:"dropped"`
	UnknownKept    int `json:"unknown_kept" yaml:"unknown_kept"`
	InvalidCoerced int `json:"invalid_coerced" yaml:"invalid_coerced"`
}

// SchemaReport is the complete, serializable outcome of one contract
// application. Field names in the serialized form are stable; new fields are
// only ever added.
type SchemaReport struct {
	ReportID              string              `json:"report_id" yaml:"report_id"`
	GeneratedAt           time.Time           `json:"generated_at" yaml:"generated_at"`
	EngineVersion         string              `json:"engine_version" yaml:"engine_version"`
	DatasetID             string              `json:"dataset_id" yaml:"dataset_id"`
	ContractVersion       int                 `json:"contract_version" yaml:"contract_version"`
	ContractHash          string              `json:"contract_hash" yaml:"contract_hash"`
	Strict                bool                `json:"strict" yaml:"strict"`
	ColumnsRenamed        map[string]string   `json:"columns_renamed" yaml:"columns_renamed"`
	ColumnsCast           map[string]CastInfo `json:"columns_cast" yaml:"columns_cast"`
	UnknownColumnsKept    []string            `json:"unknown_columns_kept" yaml:"unknown_columns_kept"`
	UnknownColumnsDropped []string            `json:"unknown_columns_dropped" yaml:"unknown_columns_dropped"`
	TransformationEvents  []TransformEvent    `json:"transformation_events,omitempty" yaml:"transformation_events,omitempty"`
	ValidationErrors      []string            `json:"validation_errors" yaml:"validation_errors"`
	ValidationWarnings    []string            `json:"validation_warnings" yaml:"validation_warnings"`
	Success               bool                `json:"success" yaml:"success"`
	Summary               Summary             `json:"summary" yaml:"summary"`
}

func newReport() *SchemaReport {
	return &SchemaReport{
		EngineVersion:         Version,
		ColumnsRenamed:        map[string]string{},
		ColumnsCast:           map[string]CastInfo{},
		UnknownColumnsKept:    []string{},
		UnknownColumnsDropped: []string{},
		ValidationErrors:      []string{},
		ValidationWarnings:    []string{},
		Success:               true,
	}
}

// Events returns the events of the given type in order.
func (r *SchemaReport) Events(t EventType) []TransformEvent {
	var out []TransformEvent
	for _, ev := range r.TransformationEvents {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}
