// SPDX-License-Identifier: Apache-2.0

// Package engine applies schema contracts to tabular datasets: it renames
// columns to their canonical names, validates required columns, coerces types
// by semantic tag, applies fill policies and records every change as an
// ordered event in a SchemaReport.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gvern/soxauto/internal/contract"
	"github.com/gvern/soxauto/internal/dataset"
)

// Version is recorded in every report.
const Version = "1.0.0"

// ContractResolver returns the active contract for a dataset and its hash.
// *registry.Registry implements it.
type ContractResolver interface {
	Load(ctx context.Context, datasetID string) (*contract.SchemaContract, string, error)
}

// Engine applies contracts. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	resolver ContractResolver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now for report and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the random report id generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// New creates an Engine resolving contracts through resolver.
func New(resolver ContractResolver, opts ...Option) *Engine {
	e := &Engine{
		resolver: resolver,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type applyConfig struct {
	strict      bool
	cast        bool
	track       bool
	dropUnknown bool
}

// ApplyOption configures one Apply call.
type ApplyOption func(*applyConfig)

// Strict turns required-column and fail_on_nan violations into errors.
func Strict(v bool) ApplyOption { return func(c *applyConfig) { c.strict = v } }

// Cast enables type coercion. It is on by default.
func Cast(v bool) ApplyOption { return func(c *applyConfig) { c.cast = v } }

// Track records the event list and per-column invalid counts. It is on by
// default; summary counts are produced either way.
func Track(v bool) ApplyOption { return func(c *applyConfig) { c.track = v } }

// DropUnknown removes columns that match no field instead of keeping them.
func DropUnknown(v bool) ApplyOption { return func(c *applyConfig) { c.dropUnknown = v } }

// Apply resolves the active contract for datasetID and applies it to ds. ds is
// never modified. Contract resolution errors are returned with a nil report.
// Strict-mode and fail_on_nan violations return the report built so far,
// marked unsuccessful, together with the error.
func (e *Engine) Apply(ctx context.Context, ds *dataset.Dataset, datasetID string, opts ...ApplyOption) (*dataset.Dataset, *SchemaReport, error) {
	if ds == nil {
		return nil, nil, errors.New("apply schema contract: dataset is nil")
	}
	sc, hash, err := e.resolver.Load(ctx, datasetID)
	if err != nil {
		return nil, nil, err
	}
	return e.apply(ds, sc, hash, opts)
}

// ApplyContract applies an already resolved contract.
func (e *Engine) ApplyContract(ds *dataset.Dataset, sc *contract.SchemaContract, opts ...ApplyOption) (*dataset.Dataset, *SchemaReport, error) {
	if ds == nil {
		return nil, nil, errors.New("apply schema contract: dataset is nil")
	}
	return e.apply(ds, sc, sc.Hash(), opts)
}

func (e *Engine) apply(ds *dataset.Dataset, sc *contract.SchemaContract, hash string, opts []ApplyOption) (*dataset.Dataset, *SchemaReport, error) {
	cfg := applyConfig{cast: true, track: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	report := newReport()
	report.ReportID = e.newID()
	report.GeneratedAt = e.now().UTC()
	report.DatasetID = sc.DatasetID()
	report.ContractVersion = sc.Version()
	report.ContractHash = hash
	report.Strict = cfg.strict
	report.Summary.RowCount = ds.Len()

	r := &run{
		engine: e,
		cfg:    cfg,
		fields: sc.Fields(),
		out:    ds.Clone(),
		report: report,
	}
	if cfg.track {
		report.TransformationEvents = []TransformEvent{}
	}

	err := r.execute()
	if err != nil {
		report.Success = false
		report.ValidationErrors = append(report.ValidationErrors, err.Error())
		e.logger.Warn("schema contract violation",
			"dataset_id", report.DatasetID,
			"contract_version", report.ContractVersion,
			"error", err)
		return nil, report, err
	}

	e.logger.Debug("schema contract applied",
		"dataset_id", report.DatasetID,
		"contract_version", report.ContractVersion,
		"rows", report.Summary.RowCount,
		"renamed", report.Summary.Renamed,
		"cast", report.Summary.Cast,
		"filled", report.Summary.Filled,
		"success", report.Success)
	return r.out, report, nil
}

// run carries the state of one application.
type run struct {
	engine *Engine
	cfg    applyConfig
	fields []contract.SchemaField
	out    *dataset.Dataset
	report *SchemaReport
	seq    int
}

func (r *run) record(ev TransformEvent) {
	if !r.cfg.track {
		return
	}
	r.seq++
	ev.Seq = r.seq
	ev.Timestamp = r.engine.now().UTC()
	r.report.TransformationEvents = append(r.report.TransformationEvents, ev)
}

func (r *run) warn(format string, args ...any) {
	r.report.ValidationWarnings = append(r.report.ValidationWarnings, fmt.Sprintf(format, args...))
}

func (r *run) execute() error {
	unknown, err := r.normalizeNames()
	if err != nil {
		return err
	}
	if err := r.checkRequired(); err != nil {
		return err
	}
	if r.cfg.cast {
		if err := r.coerce(); err != nil {
			return err
		}
	}
	if err := r.applyFillPolicies(); err != nil {
		return err
	}
	r.handleUnknown(unknown)
	return nil
}

func (r *run) normalizeNames() ([]string, error) {
	columns := r.out.Columns()
	m := matchColumns(columns, r.fields)
	for _, w := range m.warnings {
		r.warn("%s", w)
	}

	var unknown []string
	for ci, name := range columns {
		fi := m.field[ci]
		if fi == unmatched {
			unknown = append(unknown, name)
			continue
		}
		canonical := r.fields[fi].Name
		if name == canonical {
			continue
		}
		if err := r.out.Rename(name, canonical); err != nil {
			return nil, fmt.Errorf("rename column %q: %w", name, err)
		}
		r.report.ColumnsRenamed[name] = canonical
		r.report.Summary.Renamed++
		r.record(TransformEvent{
			EventType:  EventRename,
			Stage:      StageNameNormalization,
			Column:     canonical,
			BeforeName: name,
			AfterName:  canonical,
		})
	}
	return unknown, nil
}

func (r *run) checkRequired() error {
	var missing []string
	for _, f := range r.fields {
		if f.Required && !r.out.Has(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if r.cfg.strict {
		return &MissingRequiredColumnError{DatasetID: r.report.DatasetID, Columns: missing}
	}
	for _, name := range missing {
		r.warn("required column %q is missing", name)
	}
	r.report.Success = false
	return nil
}

func (r *run) coerce() error {
	for _, f := range r.fields {
		col, ok := r.out.Column(f.Name)
		if !ok {
			continue
		}
		res := coerceColumn(f, col)
		r.report.Summary.InvalidCoerced += res.invalid
		if res.typ == col.Type && res.changed == 0 {
			if res.blanked > 0 {
				if err := r.out.Replace(&dataset.Column{Name: f.Name, Type: col.Type, Values: res.values}); err != nil {
					return fmt.Errorf("blank column %q: %w", f.Name, err)
				}
			}
			continue
		}

		info := CastInfo{BeforeType: col.Type, AfterType: res.typ}
		ev := TransformEvent{
			EventType:  EventCast,
			Stage:      StageTypeCoercion,
			Column:     f.Name,
			BeforeType: col.Type,
			AfterType:  res.typ,
		}
		if r.cfg.track {
			info.InvalidCoercedCount = intPtr(res.invalid)
			ev.InvalidCoercedCount = intPtr(res.invalid)
		}
		if err := r.out.Replace(&dataset.Column{Name: f.Name, Type: res.typ, Values: res.values}); err != nil {
			return fmt.Errorf("cast column %q: %w", f.Name, err)
		}
		r.report.ColumnsCast[f.Name] = info
		r.report.Summary.Cast++
		r.record(ev)
		if res.invalid > 0 {
			r.warn("column %q: %d values could not be coerced to %s and are now missing", f.Name, res.invalid, res.typ)
		}
	}
	return nil
}

func (r *run) applyFillPolicies() error {
	for _, f := range r.fields {
		col, ok := r.out.Column(f.Name)
		if !ok {
			continue
		}
		missing := col.MissingCount()
		if missing == 0 {
			continue
		}

		switch f.FillPolicy {
		case contract.FillZero, contract.FillEmpty:
			neutral, ok := neutralValue(col.Type)
			if !ok {
				r.warn("column %q: %s has no neutral value for type %s; %d missing values kept",
					f.Name, f.FillPolicy, col.Type, missing)
				continue
			}
			values := make([]any, len(col.Values))
			for i, v := range col.Values {
				if v == nil {
					v = neutral
				}
				values[i] = v
			}
			if err := r.out.Replace(&dataset.Column{Name: col.Name, Type: col.Type, Values: values}); err != nil {
				return fmt.Errorf("fill column %q: %w", f.Name, err)
			}
			r.report.Summary.Filled += missing
			r.record(TransformEvent{
				EventType:   EventFill,
				Stage:       StageFillPolicy,
				Column:      f.Name,
				FilledCount: intPtr(missing),
			})
			continue

		case contract.FillFailOnNaN:
			if f.ReconciliationCritical || r.cfg.strict {
				return &FailOnNaNError{
					DatasetID:              r.report.DatasetID,
					Column:                 f.Name,
					MissingCount:           missing,
					ReconciliationCritical: f.ReconciliationCritical,
				}
			}
			r.warn("column %q: fail_on_nan violated, %d missing values", f.Name, missing)
			r.report.Success = false
			continue
		}

		if f.ReconciliationCritical {
			r.warn("reconciliation-critical column %q has %d missing values", f.Name, missing)
		}
	}
	return nil
}

func (r *run) handleUnknown(unknown []string) {
	for _, name := range unknown {
		if !r.cfg.dropUnknown {
			r.report.UnknownColumnsKept = append(r.report.UnknownColumnsKept, name)
			r.report.Summary.UnknownKept++
			continue
		}
		r.out.Drop(name)
		r.report.UnknownColumnsDropped = append(r.report.UnknownColumnsDropped, name)
		r.report.Summary.Dropped++
		r.record(TransformEvent{
			EventType: EventDrop,
			Stage:     StageUnknownColumns,
			Column:    name,
		})
	}
}

func intPtr(n int) *int { return &n }
