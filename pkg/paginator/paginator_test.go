package paginator

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// lipsum is 48 words split into pages of 10.
var lipsum = [][]string{
	{"Curabitur", "eros", "magna,", "varius", "ut", "metus", "non,", "iaculis", "vestibulum", "nisl."},
	{"Curabitur", "eros", "magna,", "varius", "ut", "metus", "non,", "iaculis", "vestibulum", "nisl."},
	{"Curabitur", "eros", "magna,", "varius", "ut", "metus", "non,", "iaculis", "vestibulum", "nisl."},
	{"Curabitur", "eros", "magna,", "varius", "ut", "metus", "non,", "iaculis", "vestibulum", "nisl."},
	{"Curabitur", "eros", "magna,", "varius", "ut", "metus", "non,", "iaculis"},
}

func lipsumTotal() int {
	n := 0
	for _, page := range lipsum {
		n += len(page)
	}
	return n
}

func flatten(pages [][]string) []string {
	var out []string
	for _, page := range pages {
		out = append(out, page...)
	}
	return out
}

// newLipsumPaginator returns a paginator whose fetch handler answers synchronously.
func newLipsumPaginator(t *testing.T, opts ...Option[string]) *Paginator[string] {
	t.Helper()

	p, err := New(10, func(p *Paginator[string], page, pageSize int) {
		if err := p.Received(lipsum[page-1], lipsumTotal()); err != nil {
			t.Errorf("Received() error = %v", err)
		}
	}, func(*Paginator[string], []string) {}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

// pendingPaginator records fetch calls without answering them.
type pendingPaginator struct {
	p     *Paginator[string]
	pages []int
}

func newPendingPaginator(t *testing.T, pageSize int, opts ...Option[string]) *pendingPaginator {
	t.Helper()

	pp := &pendingPaginator{}
	p, err := New(pageSize, func(_ *Paginator[string], page, _ int) {
		pp.pages = append(pp.pages, page)
	}, func(*Paginator[string], []string) {}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	pp.p = p
	return pp
}

func TestNew_Validation(t *testing.T) {
	fetch := func(*Paginator[int], int, int) {}
	results := func(*Paginator[int], []int) {}

	tests := []struct {
		name     string
		pageSize int
		fetch    FetchHandler[int]
		results  ResultsHandler[int]
		wantErr  error
	}{
		{name: "valid", pageSize: 1, fetch: fetch, results: results},
		{name: "zero page size", pageSize: 0, fetch: fetch, results: results, wantErr: ErrInvalidPageSize},
		{name: "negative page size", pageSize: -3, fetch: fetch, results: results, wantErr: ErrInvalidPageSize},
		{name: "nil fetch handler", pageSize: 10, results: results, wantErr: ErrNilHandler},
		{name: "nil results handler", pageSize: 10, fetch: fetch, wantErr: ErrNilHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.pageSize, tt.fetch, tt.results)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				if p != nil {
					t.Error("New() should return nil paginator on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error = %v", err)
			}
		})
	}
}

func TestPaginator_IdleState(t *testing.T) {
	p := newLipsumPaginator(t)

	if p.Status() != StatusIdle {
		t.Errorf("Status() = %v, want %v", p.Status(), StatusIdle)
	}
	if p.Page() != 0 || p.Total() != 0 || p.Len() != 0 {
		t.Errorf("got page=%d total=%d len=%d, want all zero", p.Page(), p.Total(), p.Len())
	}
	if len(p.Results()) != 0 {
		t.Errorf("Results() = %v, want empty", p.Results())
	}
	if p.ReachedLastPage() {
		t.Error("ReachedLastPage() should be false while idle")
	}
	if p.PageSize() != 10 {
		t.Errorf("PageSize() = %d, want 10", p.PageSize())
	}
}

func TestPaginator_FirstPage(t *testing.T) {
	p := newLipsumPaginator(t)
	p.FetchFirstPage()

	if p.Len() != 10 {
		t.Errorf("Len() = %d, want 10", p.Len())
	}
	if p.Total() != 48 {
		t.Errorf("Total() = %d, want 48", p.Total())
	}
	if p.Status() != StatusReady {
		t.Errorf("Status() = %v, want %v", p.Status(), StatusReady)
	}
}

func TestPaginator_AccumulatesInOrder(t *testing.T) {
	p := newLipsumPaginator(t)

	for i := range lipsum {
		p.FetchNextPage()
		want := flatten(lipsum[:i+1])
		if diff := cmp.Diff(want, p.Results()); diff != "" {
			t.Fatalf("after page %d results mismatch (-want +got):\n%s", i+1, diff)
		}
		if p.Page() != i+1 {
			t.Errorf("Page() = %d, want %d", p.Page(), i+1)
		}
	}

	if p.Len() != p.Total() {
		t.Errorf("Len() = %d, want total %d", p.Len(), p.Total())
	}
	if !p.ReachedLastPage() {
		t.Error("ReachedLastPage() should be true after all pages")
	}
}

func TestPaginator_TwoPageAccumulation(t *testing.T) {
	pages := [][]string{{"a", "b"}, {"c", "d"}}
	var delivered [][]string

	p, err := New(2, func(p *Paginator[string], page, _ int) {
		_ = p.Received(pages[page-1], 4)
	}, func(_ *Paginator[string], elements []string) {
		delivered = append(delivered, elements)
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p.FetchNextPage()
	p.FetchNextPage()

	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, p.Results()); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if p.Page() != 2 {
		t.Errorf("Page() = %d, want 2", p.Page())
	}
	// The results handler sees only the new page.
	if diff := cmp.Diff(pages, delivered); diff != "" {
		t.Errorf("delivered pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginator_ReachedLastPageBoundary(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		pageSize int
		pages    int
		expected bool
	}{
		{name: "48/10 after 4 pages", total: 48, pageSize: 10, pages: 4, expected: false},
		{name: "48/10 after 5 pages", total: 48, pageSize: 10, pages: 5, expected: true},
		{name: "50/10 after 5 pages", total: 50, pageSize: 10, pages: 5, expected: true},
		{name: "51/10 after 5 pages", total: 51, pageSize: 10, pages: 5, expected: false},
		{name: "empty source after 1 page", total: 0, pageSize: 10, pages: 1, expected: true},
		{name: "single element", total: 1, pageSize: 10, pages: 1, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := newPendingPaginator(t, tt.pageSize)
			for i := 0; i < tt.pages; i++ {
				pp.p.FetchNextPage()
				if err := pp.p.Received(nil, tt.total); err != nil {
					t.Fatalf("Received() error = %v", err)
				}
			}
			if got := pp.p.ReachedLastPage(); got != tt.expected {
				t.Errorf("ReachedLastPage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPaginator_NoFetchAfterLastPage(t *testing.T) {
	calls := 0
	p, err := New(10, func(p *Paginator[string], page, _ int) {
		calls++
		_ = p.Received(lipsum[page-1], lipsumTotal())
	}, func(*Paginator[string], []string) {}, WithName[string]("last_page_test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 8; i++ {
		p.FetchNextPage()
	}

	if calls != 5 {
		t.Errorf("fetch handler called %d times, want 5", calls)
	}
	if got := testutil.ToFloat64(fetchSkippedTotal.WithLabelValues("last_page_test", skipLastPage)); got != 3 {
		t.Errorf("skipped fetches = %v, want 3", got)
	}
}

func TestPaginator_InProgressGuard(t *testing.T) {
	pp := newPendingPaginator(t, 10)

	pp.p.FetchNextPage()
	if pp.p.Status() != StatusInProgress {
		t.Fatalf("Status() = %v, want %v", pp.p.Status(), StatusInProgress)
	}

	pp.p.FetchNextPage()
	pp.p.FetchNextPage()
	if len(pp.pages) != 1 {
		t.Fatalf("fetch handler called %d times, want 1", len(pp.pages))
	}

	if err := pp.p.Received(lipsum[0], 48); err != nil {
		t.Fatalf("Received() error = %v", err)
	}

	pp.p.FetchNextPage()
	if diff := cmp.Diff([]int{1, 2}, pp.pages); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginator_Reset(t *testing.T) {
	resets := 0
	p := newLipsumPaginator(t, WithResetHandler(func(p *Paginator[string]) {
		resets++
		if p.Len() != 0 || p.Page() != 0 || p.Total() != 0 {
			t.Error("reset handler should observe cleared state")
		}
	}))

	p.FetchNextPage()
	p.FetchNextPage()

	for i := 1; i <= 3; i++ {
		p.Reset()
		if p.Page() != 0 || p.Total() != 0 || p.Len() != 0 || p.Status() != StatusIdle {
			t.Fatalf("reset %d: page=%d total=%d len=%d status=%v", i, p.Page(), p.Total(), p.Len(), p.Status())
		}
		if resets != i {
			t.Errorf("reset handler called %d times, want %d", resets, i)
		}
	}

	// A reset paginator starts over at page 1.
	p.FetchNextPage()
	if diff := cmp.Diff(lipsum[0], p.Results()); diff != "" {
		t.Errorf("results after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginator_ResetWhileInProgress(t *testing.T) {
	pp := newPendingPaginator(t, 10)

	pp.p.FetchNextPage()
	pp.p.Reset()

	if pp.p.Status() != StatusIdle {
		t.Errorf("Status() = %v, want %v", pp.p.Status(), StatusIdle)
	}
	// The abandoned fetch can no longer report.
	if err := pp.p.Received(lipsum[0], 48); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Received() error = %v, want %v", err, ErrNotInProgress)
	}

	pp.p.FetchNextPage()
	if diff := cmp.Diff([]int{1, 1}, pp.pages); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginator_FailureLeavesDataUntouched(t *testing.T) {
	failures := 0
	p, err := New(10, func(p *Paginator[string], _, _ int) {
		_ = p.Failed()
	}, func(*Paginator[string], []string) {
		t.Error("results handler should not be called")
	}, WithFailureHandler(func(*Paginator[string]) {
		failures++
	}), WithName[string]("failure_test"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if failures != 0 {
		t.Fatalf("failure handler called before any fetch")
	}

	for i := 1; i <= 4; i++ {
		p.FetchNextPage()
		if failures != i {
			t.Errorf("failure handler called %d times, want %d", failures, i)
		}
		if p.Page() != 0 || p.Total() != 0 || p.Len() != 0 {
			t.Errorf("failed fetch changed data: page=%d total=%d len=%d", p.Page(), p.Total(), p.Len())
		}
		if p.Status() != StatusReady {
			t.Errorf("Status() = %v, want %v", p.Status(), StatusReady)
		}
	}

	if got := testutil.ToFloat64(fetchFailuresTotal.WithLabelValues("failure_test")); got != 4 {
		t.Errorf("failure metric = %v, want 4", got)
	}
}

func TestPaginator_FailureRetriesSamePage(t *testing.T) {
	pp := newPendingPaginator(t, 10)

	pp.p.FetchNextPage()
	_ = pp.p.Received(lipsum[0], 48)
	pp.p.FetchNextPage()
	_ = pp.p.Failed()
	pp.p.FetchNextPage()

	if diff := cmp.Diff([]int{1, 2, 2}, pp.pages); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginator_RetryAfterFailure(t *testing.T) {
	tests := []struct {
		name          string
		failures      map[int]int // page -> failed attempts before it succeeds
		wantRequested []int
	}{
		{
			name:          "first page fails once",
			failures:      map[int]int{1: 1},
			wantRequested: []int{1, 1, 2, 3, 4, 5},
		},
		{
			name:          "first page fails repeatedly",
			failures:      map[int]int{1: 3},
			wantRequested: []int{1, 1, 1, 1, 2, 3, 4, 5},
		},
		{
			name:          "middle page fails",
			failures:      map[int]int{3: 2},
			wantRequested: []int{1, 2, 3, 3, 3, 4, 5},
		},
		{
			name:          "last page fails",
			failures:      map[int]int{5: 1},
			wantRequested: []int{1, 2, 3, 4, 5, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining := make(map[int]int, len(tt.failures))
			for page, n := range tt.failures {
				remaining[page] = n
			}

			var requested []int
			failures := 0
			p, err := New(10, func(p *Paginator[string], page, _ int) {
				requested = append(requested, page)
				if remaining[page] > 0 {
					remaining[page]--
					if err := p.Failed(); err != nil {
						t.Errorf("Failed() error = %v", err)
					}
					return
				}
				if err := p.Received(lipsum[page-1], lipsumTotal()); err != nil {
					t.Errorf("Received() error = %v", err)
				}
			}, func(*Paginator[string], []string) {},
				WithFailureHandler(func(p *Paginator[string]) {
					failures++
					if p.ReachedLastPage() {
						t.Errorf("ReachedLastPage() = true after failed page %d", p.Page()+1)
					}
				}))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			wantFailures := 0
			for _, n := range tt.failures {
				wantFailures += n
			}

			p.FetchFirstPage()
			for calls := 1; !p.ReachedLastPage(); calls++ {
				if calls > len(tt.wantRequested) {
					t.Fatalf("no progress after %d calls: page=%d status=%v", calls, p.Page(), p.Status())
				}
				before := failures
				p.FetchNextPage()
				if failures > before+1 {
					t.Fatalf("failure handler called %d times for one FetchNextPage", failures-before)
				}
			}

			if diff := cmp.Diff(tt.wantRequested, requested); diff != "" {
				t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
			}
			if failures != wantFailures {
				t.Errorf("failure handler called %d times, want %d", failures, wantFailures)
			}
			if diff := cmp.Diff(flatten(lipsum), p.Results()); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPaginator_FailedFirstPageIsNotLastPage(t *testing.T) {
	pp := newPendingPaginator(t, 10)

	pp.p.FetchNextPage()
	if err := pp.p.Failed(); err != nil {
		t.Fatalf("Failed() error = %v", err)
	}
	if pp.p.ReachedLastPage() {
		t.Error("ReachedLastPage() = true before any page was received")
	}

	pp.p.FetchNextPage()
	if diff := cmp.Diff([]int{1, 1}, pp.pages); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginator_ReachedLastPageLargeTotal(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("needs 64-bit int")
	}
	// 2^53+1 is not representable as float64.
	shift := 53
	total := 1<<shift + 1
	pp := newPendingPaginator(t, 1)
	pp.p.FetchNextPage()
	if err := pp.p.Received(nil, total); err != nil {
		t.Fatalf("Received() error = %v", err)
	}
	pp.p.page = total - 1
	if pp.p.ReachedLastPage() {
		t.Error("ReachedLastPage() = true one page before the end")
	}
	pp.p.page = total
	if !pp.p.ReachedLastPage() {
		t.Error("ReachedLastPage() = false on the last page")
	}
}

func TestPaginator_FetchFirstPageMidFetch(t *testing.T) {
	resets := 0
	pp := newPendingPaginator(t, 10, WithResetHandler(func(*Paginator[string]) { resets++ }))

	pp.p.FetchNextPage()
	_ = pp.p.Received(lipsum[0], 48)
	pp.p.FetchNextPage()
	if pp.p.Status() != StatusInProgress {
		t.Fatalf("Status() = %v, want %v", pp.p.Status(), StatusInProgress)
	}

	pp.p.FetchFirstPage()

	if resets != 1 {
		t.Errorf("reset handler called %d times, want 1", resets)
	}
	if pp.p.Len() != 0 || pp.p.Page() != 0 {
		t.Errorf("state not cleared: page=%d len=%d", pp.p.Page(), pp.p.Len())
	}
	if diff := cmp.Diff([]int{1, 2, 1}, pp.pages); diff != "" {
		t.Errorf("requested pages mismatch (-want +got):\n%s", diff)
	}
	if pp.p.Status() != StatusInProgress {
		t.Errorf("Status() = %v, want %v", pp.p.Status(), StatusInProgress)
	}
}

func TestPaginator_ContractViolations(t *testing.T) {
	t.Run("received while idle", func(t *testing.T) {
		pp := newPendingPaginator(t, 10)
		err := pp.p.Received([]string{"x"}, 1)
		if !errors.Is(err, ErrNotInProgress) {
			t.Fatalf("Received() error = %v, want %v", err, ErrNotInProgress)
		}
		if pp.p.Len() != 0 || pp.p.Status() != StatusIdle {
			t.Error("rejected Received() mutated state")
		}
	})

	t.Run("failed while ready", func(t *testing.T) {
		pp := newPendingPaginator(t, 10)
		pp.p.FetchNextPage()
		_ = pp.p.Received(lipsum[0], 48)
		if err := pp.p.Failed(); !errors.Is(err, ErrNotInProgress) {
			t.Fatalf("Failed() error = %v, want %v", err, ErrNotInProgress)
		}
		if pp.p.Status() != StatusReady {
			t.Errorf("Status() = %v, want %v", pp.p.Status(), StatusReady)
		}
	})

	t.Run("received twice", func(t *testing.T) {
		pp := newPendingPaginator(t, 10)
		pp.p.FetchNextPage()
		_ = pp.p.Received(lipsum[0], 48)
		if err := pp.p.Received(lipsum[1], 48); !errors.Is(err, ErrNotInProgress) {
			t.Fatalf("Received() error = %v, want %v", err, ErrNotInProgress)
		}
		if pp.p.Page() != 1 || pp.p.Len() != 10 {
			t.Errorf("page=%d len=%d, want 1 and 10", pp.p.Page(), pp.p.Len())
		}
	})

	t.Run("negative total", func(t *testing.T) {
		pp := newPendingPaginator(t, 10, WithName[string]("negative_total_test"))
		pp.p.FetchNextPage()
		if err := pp.p.Received([]string{"x"}, -1); !errors.Is(err, ErrNegativeTotal) {
			t.Fatalf("Received() error = %v, want %v", err, ErrNegativeTotal)
		}
		if pp.p.Status() != StatusInProgress || pp.p.Len() != 0 {
			t.Error("rejected Received() mutated state")
		}
		if got := testutil.ToFloat64(contractViolationsTotal.WithLabelValues("negative_total_test", "received")); got != 1 {
			t.Errorf("contract violation metric = %v, want 1", got)
		}
	})
}

func TestPaginator_CompletionHandler(t *testing.T) {
	completions := 0
	p := newLipsumPaginator(t, WithCompletionHandler(func(p *Paginator[string]) {
		completions++
		if p.Len() != 48 {
			t.Errorf("completion observed %d results, want 48", p.Len())
		}
	}))

	for i := 0; i < 4; i++ {
		p.FetchNextPage()
	}
	if completions != 0 {
		t.Fatalf("completion handler fired before last page")
	}

	p.FetchNextPage()
	p.FetchNextPage()
	if completions != 1 {
		t.Errorf("completion handler called %d times, want 1", completions)
	}

	// A fresh pass completes again.
	p.FetchFirstPage()
	for !p.ReachedLastPage() {
		p.FetchNextPage()
	}
	if completions != 2 {
		t.Errorf("completion handler called %d times, want 2", completions)
	}
}

func TestPaginator_CompletionWithChainedFetch(t *testing.T) {
	completions := 0
	p, err := New(10, func(p *Paginator[string], page, _ int) {
		_ = p.Received(lipsum[page-1], lipsumTotal())
	}, func(p *Paginator[string], _ []string) {
		// Drain everything from inside the results handler.
		p.FetchNextPage()
	}, WithCompletionHandler(func(*Paginator[string]) { completions++ }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p.FetchFirstPage()

	if p.Len() != 48 {
		t.Errorf("Len() = %d, want 48", p.Len())
	}
	if completions != 1 {
		t.Errorf("completion handler called %d times, want 1", completions)
	}
}

func TestPaginator_ResultsAreClipped(t *testing.T) {
	p := newLipsumPaginator(t)
	p.FetchNextPage()

	got := p.Results()
	_ = append(got, "intruder")
	p.FetchNextPage()

	if p.Results()[10] != lipsum[1][0] {
		t.Errorf("caller append leaked into results: %q", p.Results()[10])
	}
}

func TestPaginator_TotalOverwritten(t *testing.T) {
	pp := newPendingPaginator(t, 10)

	pp.p.FetchNextPage()
	_ = pp.p.Received(lipsum[0], 48)
	pp.p.FetchNextPage()
	_ = pp.p.Received(lipsum[1], 20)

	if pp.p.Total() != 20 {
		t.Errorf("Total() = %d, want 20", pp.p.Total())
	}
	if !pp.p.ReachedLastPage() {
		t.Error("ReachedLastPage() should follow the latest total")
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusIdle:       "idle",
		StatusInProgress: "in_progress",
		StatusReady:      "ready",
		Status(42):       "unknown",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", int(status), got, want)
		}
	}
}

func TestPaginator_Metrics(t *testing.T) {
	p := newLipsumPaginator(t, WithName[string]("metrics_test"))

	p.FetchFirstPage()
	p.FetchNextPage()

	if got := testutil.ToFloat64(fetchesTotal.WithLabelValues("metrics_test")); got != 2 {
		t.Errorf("fetches metric = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pagesReceivedTotal.WithLabelValues("metrics_test")); got != 2 {
		t.Errorf("pages metric = %v, want 2", got)
	}
	if got := testutil.ToFloat64(elementsReceivedTotal.WithLabelValues("metrics_test")); got != 20 {
		t.Errorf("elements metric = %v, want 20", got)
	}
	if got := testutil.ToFloat64(resetsTotal.WithLabelValues("metrics_test")); got != 1 {
		t.Errorf("resets metric = %v, want 1", got)
	}
}

func TestNew_ErrorMessage(t *testing.T) {
	_, err := New(0, func(*Paginator[int], int, int) {}, func(*Paginator[int], []int) {})
	if err == nil || !strings.Contains(err.Error(), "got 0") {
		t.Errorf("error = %v, want message containing page size", err)
	}
}
