// internal/core/usecases/task_queue_test.go
package usecases

import (
	"context"
	"errors"
	"testing"

	"noctua/internal/core/domain"
	"noctua/internal/core/ports"
	"noctua/internal/testutil"
)

// fakeProber devuelve resultados pre-cargados por URL y cuenta las llamadas.
type fakeProber struct {
	results map[string]domain.ProbeResult
	err     map[string]error
	calls   map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		results: make(map[string]domain.ProbeResult),
		err:     make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (p *fakeProber) Probe(_ context.Context, url string) (domain.ProbeResult, error) {
	p.calls[url]++
	if err, ok := p.err[url]; ok {
		return domain.ProbeResult{}, err
	}
	return p.results[url], nil
}

// fakeHandler atiende un tipo de tarea y puede descubrir targets nuevos.
type fakeHandler struct {
	taskType   domain.TaskType
	discovered []string
	err        error
	handled    []string
}

func (h *fakeHandler) Type() domain.TaskType { return h.taskType }

func (h *fakeHandler) Handle(_ context.Context, _ *domain.RunContext, _ domain.ScanTask, target string) ([]string, error) {
	h.handled = append(h.handled, target)
	if h.err != nil {
		return nil, h.err
	}
	return h.discovered, nil
}

func queueContext() *domain.RunContext {
	return domain.NewRunContext(domain.Scope{Host: "example.com", Mode: domain.ModeActive})
}

func TestEnqueue_Dedup(t *testing.T) {
	q := NewTaskQueue(newFakeProber(), NewDecisionEngine(testutil.NewTestLogger()), nil, testutil.NewTestLogger())

	testutil.AssertTrue(t, q.Enqueue("https://a.example.com"), "first enqueue accepted")
	testutil.AssertFalse(t, q.Enqueue("https://a.example.com"), "duplicate rejected")
	testutil.AssertFalse(t, q.Enqueue(""), "empty target rejected")
	testutil.AssertEqual(t, q.Pending(), 1, "one pending target")
}

func TestRun_ProbeOncePerTarget(t *testing.T) {
	prober := newFakeProber()
	prober.results["https://a.example.com"] = domain.ProbeResult{StatusCode: 404}

	q := NewTaskQueue(prober, NewDecisionEngine(testutil.NewTestLogger()), nil, testutil.NewTestLogger())
	q.Enqueue("https://a.example.com")
	q.Enqueue("https://a.example.com")

	testutil.AssertNoError(t, q.Run(context.Background(), queueContext()), "Run")
	testutil.AssertEqual(t, prober.calls["https://a.example.com"], 1, "single probe per target")
}

func TestRun_DispatchesToHandler(t *testing.T) {
	prober := newFakeProber()
	prober.results["https://a.example.com"] = domain.ProbeResult{StatusCode: 403}

	bypass := &fakeHandler{taskType: domain.TaskBypass}
	q := NewTaskQueue(prober, NewDecisionEngine(testutil.NewTestLogger()),
		[]ports.TaskHandler{bypass}, testutil.NewTestLogger())
	q.Enqueue("https://a.example.com")

	testutil.AssertNoError(t, q.Run(context.Background(), queueContext()), "Run")
	testutil.AssertEqual(t, len(bypass.handled), 1, "bypass handler invoked once")
	testutil.AssertEqual(t, bypass.handled[0], "https://a.example.com", "handler got the target")
}

func TestRun_FeedbackLoop(t *testing.T) {
	// El fuzzer descubre un endpoint nuevo; la cola debe sondearlo también
	// y emitir el descubrimiento exactamente una vez.
	prober := newFakeProber()
	prober.results["https://a.example.com"] = domain.ProbeResult{StatusCode: 200, ContentLength: 10}
	prober.results["https://a.example.com/admin"] = domain.ProbeResult{StatusCode: 404}

	fuzzer := &fakeHandler{taskType: domain.TaskFuzzing, discovered: []string{"https://a.example.com/admin"}}
	content := &fakeHandler{taskType: domain.TaskContentAnalysis}
	q := NewTaskQueue(prober, NewDecisionEngine(testutil.NewTestLogger()),
		[]ports.TaskHandler{fuzzer, content}, testutil.NewTestLogger())
	q.Enqueue("https://a.example.com")

	rc := queueContext()
	emitted := make([]string, 0)
	rc.AddObserver(func(category, value string) {
		if category == "endpoint" {
			emitted = append(emitted, value)
		}
	})

	testutil.AssertNoError(t, q.Run(context.Background(), rc), "Run")
	testutil.AssertEqual(t, prober.calls["https://a.example.com/admin"], 1, "discovered target probed")
	testutil.AssertEqual(t, len(emitted), 1, "discovery emitted once")
	testutil.AssertEqual(t, emitted[0], "https://a.example.com/admin", "emitted value")
}

func TestRun_UnknownTaskTypeSkipped(t *testing.T) {
	// 403 propone un bypass, pero no hay handler registrado para él: la
	// cola lo salta y sigue drenando.
	prober := newFakeProber()
	prober.results["https://a.example.com"] = domain.ProbeResult{StatusCode: 403}
	prober.results["https://b.example.com"] = domain.ProbeResult{StatusCode: 404}

	q := NewTaskQueue(prober, NewDecisionEngine(testutil.NewTestLogger()), nil, testutil.NewTestLogger())
	q.Enqueue("https://a.example.com")
	q.Enqueue("https://b.example.com")

	testutil.AssertNoError(t, q.Run(context.Background(), queueContext()), "missing handler is not fatal")
	testutil.AssertEqual(t, prober.calls["https://b.example.com"], 1, "queue kept draining")
}

func TestRun_HandlerFailureContinues(t *testing.T) {
	prober := newFakeProber()
	prober.results["https://a.example.com"] = domain.ProbeResult{StatusCode: 200, ContentLength: 10}

	content := &fakeHandler{taskType: domain.TaskContentAnalysis, err: errors.New("fetch failed")}
	fuzzer := &fakeHandler{taskType: domain.TaskFuzzing}
	q := NewTaskQueue(prober, NewDecisionEngine(testutil.NewTestLogger()),
		[]ports.TaskHandler{content, fuzzer}, testutil.NewTestLogger())
	q.Enqueue("https://a.example.com")

	testutil.AssertNoError(t, q.Run(context.Background(), queueContext()), "handler failure is not fatal")
	testutil.AssertEqual(t, len(fuzzer.handled), 1, "later task still dispatched")
}

func TestRun_ProbeFailureContinues(t *testing.T) {
	prober := newFakeProber()
	prober.err["https://down.example.com"] = errors.New("connection refused")
	prober.results["https://up.example.com"] = domain.ProbeResult{StatusCode: 404}

	q := NewTaskQueue(prober, NewDecisionEngine(testutil.NewTestLogger()), nil, testutil.NewTestLogger())
	q.Enqueue("https://down.example.com")
	q.Enqueue("https://up.example.com")

	testutil.AssertNoError(t, q.Run(context.Background(), queueContext()), "probe failure is not fatal")
	testutil.AssertEqual(t, prober.calls["https://up.example.com"], 1, "queue kept draining")
}

func TestRun_CanceledContextStopsDrain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewTaskQueue(newFakeProber(), NewDecisionEngine(testutil.NewTestLogger()), nil, testutil.NewTestLogger())
	q.Enqueue("https://a.example.com")

	err := q.Run(ctx, queueContext())
	testutil.AssertTrue(t, errors.Is(err, domain.ErrRunCanceled), "cancellation surfaces as ErrRunCanceled")
	testutil.AssertEqual(t, q.Pending(), 1, "pending target preserved")
}
