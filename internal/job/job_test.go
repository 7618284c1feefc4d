package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/scrapers/page"
	"slotwatch/internal/slots"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	texts []string
	err   error
}

func (s fakeScraper) Url() string {
	return "https://example.com/signup"
}

func (s fakeScraper) Scrape(ctx context.Context) ([]string, error) {
	return s.texts, s.err
}

type memoryStore struct {
	mutex    sync.Mutex
	existing map[string]struct{}
	puts     [][]string
	putErr   error
}

func newMemoryStore(existing ...string) *memoryStore {
	s := &memoryStore{existing: map[string]struct{}{}}
	for _, id := range existing {
		s.existing[id] = struct{}{}
	}
	return s
}

func (s *memoryStore) Lookup(ctx context.Context, ids []string) (slots.Lookup, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out slots.Lookup
	for _, id := range ids {
		if _, ok := s.existing[id]; ok {
			out.Confirmed = append(out.Confirmed, id)
		}
	}
	return out, nil
}

func (s *memoryStore) Put(ctx context.Context, ids []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, slices.Clone(ids))
	for _, id := range ids {
		s.existing[id] = struct{}{}
	}
	return nil
}

func (s *memoryStore) putSizes() []int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var sizes []int
	for _, p := range s.puts {
		sizes = append(sizes, len(p))
	}
	slices.Sort(sizes)
	slices.Reverse(sizes)
	return sizes
}

type memoryNotifier struct {
	sent []slots.Notification
	err  error
}

func (n *memoryNotifier) Notify(ctx context.Context, notification slots.Notification) error {
	n.sent = append(n.sent, notification)
	return n.err
}

func marshal(t *testing.T, result Result) string {
	out, err := json.Marshal(result)
	require.NoError(t, err)
	return string(out)
}

func TestRunOneNewSlot(t *testing.T) {
	store := newMemoryStore("01/01/2024-9:00")
	notifier := &memoryNotifier{}
	runner := NewRunner(fakeScraper{texts: []string{
		"01/01/2024", "9:00", "02/01/2024", "10:00",
	}}, store, notifier, telemetry.NewRecorder())

	result := runner.Run(context.Background())
	require.NoError(t, result.Err)
	require.Equal(t, []string{"01/01/2024-9:00", "02/01/2024-10:00"}, result.Slots)

	require.Len(t, notifier.sent, 1)
	require.Equal(t, []string{"02/01/2024-10:00"}, notifier.sent[0].Slots)
	require.Equal(t, "https://example.com/signup", notifier.sent[0].Source)
	require.Equal(t, [][]string{{"02/01/2024-10:00"}}, store.puts)

	require.Equal(t, `{"slots":["01/01/2024-9:00","02/01/2024-10:00"]}`, marshal(t, result))
}

func TestRunThirtyNewSlots(t *testing.T) {
	var texts []string
	var expected []string
	for day := 1; day <= 30; day++ {
		date := fmt.Sprintf("%02d/01/2024", day)
		texts = append(texts, date, "9:00")
		expected = append(expected, date+"-9:00")
	}

	store := newMemoryStore()
	notifier := &memoryNotifier{}
	rec := telemetry.NewRecorder()
	runner := NewRunner(fakeScraper{texts: texts}, store, notifier, rec)

	result := runner.Run(context.Background())
	require.NoError(t, result.Err)
	require.Equal(t, expected, result.Slots)

	require.Len(t, notifier.sent, 1)
	require.Len(t, notifier.sent[0].Slots, 30)
	require.Equal(t, []int{25, 5}, store.putSizes())

	count, ok := rec.Count("job: slots: reconciler.new")
	require.True(t, ok)
	require.EqualValues(t, 30, count)

	// a second run finds everything stored
	result = runner.Run(context.Background())
	require.NoError(t, result.Err)
	require.Len(t, notifier.sent, 1)
	require.Len(t, store.puts, 2)
}

func TestRunAttachesRunId(t *testing.T) {
	rec := telemetry.NewRecorder()
	runner := NewRunner(fakeScraper{texts: []string{"01/01/2024", "9:00"}}, newMemoryStore(), &memoryNotifier{}, rec)
	runner.Run(context.Background())

	var runIds []any
	for _, report := range rec.Reports(telemetry.LevelDebug) {
		n := len(report.Params)
		require.GreaterOrEqual(t, n, 2, report.ID)
		require.Equal(t, "run", report.Params[n-2], report.ID)
		runIds = append(runIds, report.Params[n-1])
	}
	require.NotEmpty(t, runIds)
	for _, id := range runIds {
		require.Equal(t, runIds[0], id)
	}
}

func TestRunErrors(t *testing.T) {
	transportErr := fmt.Errorf("%w: fetch: connection refused", slots.ErrTransport)
	putErr := errors.New("throughput exceeded")

	testCases := []struct {
		name     string
		scraper  fakeScraper
		store    *memoryStore
		notifier *memoryNotifier
		sentinel error
		message  string
	}{
		{
			name:     "transport",
			scraper:  fakeScraper{err: transportErr},
			store:    newMemoryStore(),
			notifier: &memoryNotifier{},
			sentinel: slots.ErrTransport,
			message:  "transport: fetch: connection refused",
		},
		{
			name:     "notification",
			scraper:  fakeScraper{texts: []string{"01/01/2024", "9:00"}},
			store:    newMemoryStore(),
			notifier: &memoryNotifier{err: errors.New("topic not found")},
			sentinel: slots.ErrNotification,
			message:  "notification: topic not found",
		},
		{
			name:     "store",
			scraper:  fakeScraper{texts: []string{"01/01/2024", "9:00"}},
			store:    &memoryStore{existing: map[string]struct{}{}, putErr: putErr},
			notifier: &memoryNotifier{},
			sentinel: slots.ErrStore,
			message:  "store: put chunk 0 (1 slots): throughput exceeded",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := telemetry.NewRecorder()
			runner := NewRunner(tc.scraper, tc.store, tc.notifier, rec)

			result := runner.Run(context.Background())
			require.ErrorIs(t, result.Err, tc.sentinel)
			require.Nil(t, result.Slots)
			require.NotEmpty(t, rec.Reports(telemetry.LevelBroken))

			expected, err := json.Marshal(map[string]string{"error": tc.message})
			require.NoError(t, err)
			if diff := cmp.Diff(string(expected), marshal(t, result)); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestResultEmpty(t *testing.T) {
	require.Equal(t, `{"slots":[]}`, marshal(t, Result{}))
}

func TestRunAgainstPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		w.Write([]byte(`<table class="SUGtableouter">
<tr><td>02/01/2024</td><td>10:00&nbsp;</td></tr>
<tr><td>01/01/2024</td><td>9:00</td></tr>
</table>`))
	}))
	defer server.Close()

	client, err := page.NewClient(page.Options{Url: server.URL, Selector: ".SUGtableouter"}, telemetry.NewRecorder())
	require.NoError(t, err)

	store := newMemoryStore("01/01/2024-9:00")
	notifier := &memoryNotifier{}
	runner := NewRunner(client, store, notifier, telemetry.NewRecorder())

	result := runner.Run(context.Background())
	require.NoError(t, result.Err)
	require.Equal(t, []string{"01/01/2024-9:00", "02/01/2024-10:00"}, result.Slots)
	require.Len(t, notifier.sent, 1)
	require.True(t, strings.HasPrefix(notifier.sent[0].Source, "http://127.0.0.1"))
	require.Equal(t, []string{"02/01/2024-10:00"}, notifier.sent[0].Slots)
}
