package core

import (
	"bytes"
	"context"
	"expvar"
	"strings"
	"testing"
	"time"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op != op {
			continue
		}
		if success == (record.err == nil) {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservabilityCoversEveryOperation(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}

	svc := NewInMemoryService(NewRulesEngine(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)

	project, _, err := svc.CreateProject(ctx, Project{Name: "observed", FinalVolume: 100})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if !audit.has(opCreateProject, AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == project.ID }) {
		t.Fatalf("expected audit entry naming the created project")
	}

	if _, _, err := svc.UpdateProject(ctx, project.ID, func(p *Project) error {
		p.Name = "renamed"
		return nil
	}); err != nil {
		t.Fatalf("update project: %v", err)
	}

	if _, err := svc.DeleteProject(ctx, "missing-project"); err == nil {
		t.Fatalf("expected delete error for missing project")
	}
	if !audit.has(opDeleteProject, AuditStatusError, nil) {
		t.Fatalf("expected audit error entry for delete_project")
	}
	if !metrics.has(opDeleteProject, false) {
		t.Fatalf("expected metrics entry for failed delete_project")
	}
	if !tracer.has(opDeleteProject, false) {
		t.Fatalf("expected failed span for delete_project")
	}

	if _, _, err := svc.AddFactor(ctx, project.ID, Factor{Name: "NaCl", Levels: []string{"50", "100"}, Stock: stock(1000)}); err != nil {
		t.Fatalf("add factor: %v", err)
	}
	if _, _, err := svc.UpdateFactor(ctx, project.ID, Factor{Name: "NaCl", Levels: []string{"25"}, Stock: stock(1000)}); err != nil {
		t.Fatalf("update factor: %v", err)
	}
	if _, _, err := svc.RemoveFactor(ctx, project.ID, "NaCl"); err != nil {
		t.Fatalf("remove factor: %v", err)
	}
	if _, _, err := svc.AddFactor(ctx, project.ID, Factor{Name: "KCl", Levels: []string{"10"}, Stock: stock(500)}); err != nil {
		t.Fatalf("re-add factor: %v", err)
	}

	record, _, err := svc.BuildDesign(ctx, project.ID, BuildOptions{})
	if err != nil {
		t.Fatalf("build design: %v", err)
	}
	if !audit.has(opBuildDesign, AuditStatusSuccess, func(entry AuditEntry) bool { return entry.EntityID == record.ID }) {
		t.Fatalf("expected audit entry naming the built design")
	}

	if _, err := svc.DeleteDesign(ctx, record.ID); err != nil {
		t.Fatalf("delete design: %v", err)
	}
	if _, err := svc.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	successOps := []string{
		opCreateProject,
		opUpdateProject,
		opDeleteProject,
		opAddFactor,
		opUpdateFactor,
		opRemoveFactor,
		opBuildDesign,
		opDeleteDesign,
	}
	for _, op := range successOps {
		if !metrics.has(op, true) {
			t.Fatalf("expected metrics success entry for %s", op)
		}
		if !tracer.has(op, true) {
			t.Fatalf("expected finished span for %s", op)
		}
		if !audit.has(op, AuditStatusSuccess, nil) {
			t.Fatalf("expected audit success entry for %s", op)
		}
	}
}

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have an export name")
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["test_op"] <= 0 {
		t.Fatalf("expected positive duration total, snapshot=%+v", snapshot)
	}
	if snapshot.Results["test_op"]["success"] != 1 || snapshot.Results["test_op"]["error"] != 1 {
		t.Fatalf("unexpected result counters, snapshot=%+v", snapshot)
	}
	if _, ok := snapshot.Results[""]; ok {
		t.Fatalf("empty operation must be dropped, snapshot=%+v", snapshot)
	}

	v := expvar.Get(recorder.Name())
	if v == nil {
		t.Fatalf("expected expvar export to be registered")
	}
	if !strings.Contains(v.String(), "test_op") {
		t.Fatalf("expected expvar output to contain the operation: %s", v.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "trace_op")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected a single span entry, got %d", len(entries))
	}
	if entries[0].Operation != "trace_op" || entries[0].Status != "success" {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if !strings.Contains(buf.String(), "\"operation\":\"trace_op\"") {
		t.Fatalf("expected JSON output to contain the operation: %q", buf.String())
	}

	_, failed := tracer.Start(context.Background(), "trace_op")
	failed.End(context.Canceled)
	entries = tracer.Entries()
	if len(entries) != 2 || entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("expected a failed span entry, got %+v", entries)
	}
}

func TestNewJSONTracerNilWriterRetainsSpansOnly(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "quiet_op")
	span.End(nil)
	if got := len(tracer.Entries()); got != 1 {
		t.Fatalf("expected retained span, got %d", got)
	}
}
