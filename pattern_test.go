package datafile_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gobeaver/datafile"
	"github.com/gobeaver/datafile/filetype"
)

func seed(t *testing.T, r *datafile.Resolver, uris ...string) {
	t.Helper()
	for _, uri := range uris {
		if err := datafile.New(uri, datafile.WithResolver(r)).CreateFromTable(context.Background(), sampleTable(t)); err != nil {
			t.Fatalf("failed to seed %s: %v", uri, err)
		}
	}
}

func paths(files []*datafile.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestResolvePattern(t *testing.T) {
	ctx := context.Background()
	r, mem := memResolver(t)
	seed(t, r,
		"mem://bucket/2024/01.csv",
		"mem://bucket/2024/02.csv",
		"mem://bucket/2024/03.json",
		"mem://bucket/2025/01.csv",
		"mem://bucket/top.csv",
	)
	mustPut(t, mem, "mem://bucket/2024/", "")

	tests := []struct {
		pattern string
		want    []string
	}{
		{"mem://bucket/2024/*.csv", []string{"mem://bucket/2024/01.csv", "mem://bucket/2024/02.csv"}},
		{"mem://bucket/**.csv", []string{"mem://bucket/2024/01.csv", "mem://bucket/2024/02.csv", "mem://bucket/2025/01.csv", "mem://bucket/top.csv"}},
		{"mem://bucket/**/*.csv", []string{"mem://bucket/2024/01.csv", "mem://bucket/2024/02.csv", "mem://bucket/2025/01.csv", "mem://bucket/top.csv"}},
		{"mem://bucket/202?/01.csv", []string{"mem://bucket/2024/01.csv", "mem://bucket/2025/01.csv"}},
		{"mem://bucket/2024/03.json", []string{"mem://bucket/2024/03.json"}},
		{"mem://bucket/2024/*", []string{"mem://bucket/2024/01.csv", "mem://bucket/2024/02.csv", "mem://bucket/2024/03.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			files, err := datafile.ResolvePattern(ctx, tt.pattern, datafile.WithPatternResolver(r))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := paths(files); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResolvePatternCarriesOptions(t *testing.T) {
	ctx := context.Background()
	r, _ := memResolver(t)
	seed(t, r, "mem://bucket/a.csv")

	files, err := datafile.ResolvePattern(ctx, "mem://bucket/*.csv",
		datafile.WithPatternResolver(r),
		datafile.WithPatternConnID("aws_prod"),
		datafile.WithPatternFileType(filetype.CSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].ConnID != "aws_prod" {
		t.Errorf("expected conn id aws_prod, got %q", files[0].ConnID)
	}

	got, err := files[0].ExportToTable(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NumRows() != 3 {
		t.Errorf("expected 3 rows, got %d", got.NumRows())
	}
}

func TestResolvePatternNotFound(t *testing.T) {
	r := datafile.NewResolver(datafile.WithResolverLogger(quietLogger()))

	_, err := datafile.ResolvePattern(context.Background(), "/tmp/doesnotexist.csv", datafile.WithPatternResolver(r))
	want := "File(s) not found for path/pattern '/tmp/doesnotexist.csv'"
	if err == nil || err.Error() != want {
		t.Fatalf("expected %q, got %v", want, err)
	}
	if !datafile.IsPatternNotFound(err) {
		t.Error("expected IsPatternNotFound")
	}

	var pnf *datafile.PatternNotFoundError
	if !errors.As(err, &pnf) || pnf.Pattern != "/tmp/doesnotexist.csv" {
		t.Errorf("expected PatternNotFoundError for the pattern, got %v", err)
	}
}

func TestResolvePatternMissingIgnore(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	r := datafile.NewResolver(datafile.WithResolverLogger(quietLogger()))
	pattern := filepath.Join(t.TempDir(), "*.csv")

	files, err := datafile.ResolvePattern(context.Background(), pattern,
		datafile.WithPatternResolver(r),
		datafile.WithMissingPolicy(datafile.MissingIgnore),
		datafile.WithPatternLogger(logger))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if files == nil || len(files) != 0 {
		t.Errorf("expected an empty non-nil slice, got %#v", files)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "no file matches pattern") {
		t.Errorf("expected a warning, got %q", logs.String())
	}
}

func TestMissingPolicyString(t *testing.T) {
	tests := map[datafile.MissingPolicy]string{
		datafile.MissingRaise:     "raise",
		datafile.MissingIgnore:    "ignore",
		datafile.MissingPolicy(7): "MissingPolicy(7)",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestTaskIDs(t *testing.T) {
	l := datafile.NewTaskLister()
	tests := []struct {
		base string
		want string
	}{
		{"", "get_file_list"},
		{"", "get_file_list__1"},
		{datafile.DefaultTaskID, "get_file_list__2"},
		{"test", "test"},
		{"test", "test__1"},
	}
	for _, tt := range tests {
		if got := l.NextID(tt.base); got != tt.want {
			t.Errorf("NextID(%q) = %s, want %s", tt.base, got, tt.want)
		}
	}
}

func TestTaskIDsConcurrent(t *testing.T) {
	l := datafile.NewTaskLister()
	const n = 50

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- l.NextID("")
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d ids, got %d", n, len(seen))
	}
}

func TestListAsTasks(t *testing.T) {
	ctx := context.Background()
	r, _ := memResolver(t)
	seed(t, r, "mem://bucket/a.csv", "mem://bucket/b.parquet")
	l := datafile.NewTaskLister()

	var dispatched []*datafile.TaskBatch
	batch, err := l.ListAsTasks(ctx, "mem://bucket/*", "aws_prod",
		datafile.WithTaskPatternOptions(datafile.WithPatternResolver(r)),
		datafile.WithDispatcher(datafile.DispatcherFunc(func(_ context.Context, b *datafile.TaskBatch) error {
			dispatched = append(dispatched, b)
			return nil
		})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.TaskID != "get_file_list" {
		t.Errorf("expected task id get_file_list, got %s", batch.TaskID)
	}
	want := []datafile.TaskDescriptor{
		{TaskID: "get_file_list", MapIndex: 0, URI: "mem://bucket/a.csv", ConnID: "aws_prod", FileType: filetype.CSV},
		{TaskID: "get_file_list", MapIndex: 1, URI: "mem://bucket/b.parquet", ConnID: "aws_prod", FileType: filetype.Parquet},
	}
	if !reflect.DeepEqual(batch.Tasks, want) {
		t.Errorf("expected %+v, got %+v", want, batch.Tasks)
	}
	if len(dispatched) != 1 {
		t.Errorf("expected one dispatch, got %d", len(dispatched))
	}

	files := batch.Files(r)
	if len(files) != 2 || !files[1].IsBinary() {
		t.Errorf("unexpected files %v", files)
	}

	again, err := l.ListAsTasks(ctx, "mem://bucket/*.csv", "",
		datafile.WithTaskPatternOptions(datafile.WithPatternResolver(r)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.TaskID != "get_file_list__1" {
		t.Errorf("expected get_file_list__1, got %s", again.TaskID)
	}

	named, err := l.ListAsTasks(ctx, "mem://bucket/*.csv", "",
		datafile.WithTaskID("test"),
		datafile.WithTaskPatternOptions(datafile.WithPatternResolver(r)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if named.TaskID != "test" || named.Tasks[0].TaskID != "test" {
		t.Errorf("expected explicit id test, got %+v", named)
	}
}

func TestListAsTasksSkipsUnknownFormats(t *testing.T) {
	ctx := context.Background()
	r, mem := memResolver(t)
	seed(t, r, "mem://bucket/a.csv", "mem://bucket/c.json")
	mustPut(t, mem, "mem://bucket/b", "no extension")
	mustPut(t, mem, "mem://bucket/notes.txt", "free text")

	var logs bytes.Buffer
	batch, err := datafile.NewTaskLister().ListAsTasks(ctx, "mem://bucket/*", "",
		datafile.WithTaskPatternOptions(
			datafile.WithPatternResolver(r),
			datafile.WithPatternLogger(slog.New(slog.NewTextHandler(&logs, nil)))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []datafile.TaskDescriptor{
		{TaskID: "get_file_list", MapIndex: 0, URI: "mem://bucket/a.csv", FileType: filetype.CSV},
		{TaskID: "get_file_list", MapIndex: 1, URI: "mem://bucket/c.json", FileType: filetype.JSON},
	}
	if !reflect.DeepEqual(batch.Tasks, want) {
		t.Errorf("expected %+v, got %+v", want, batch.Tasks)
	}
	if !strings.Contains(logs.String(), "mem://bucket/b") || !strings.Contains(logs.String(), "mem://bucket/notes.txt") {
		t.Errorf("expected skipped files to be logged, got %q", logs.String())
	}
}

func TestListAsTasksMissing(t *testing.T) {
	ctx := context.Background()
	r, _ := memResolver(t)
	l := datafile.NewTaskLister()
	popts := datafile.WithTaskPatternOptions(datafile.WithPatternResolver(r), datafile.WithPatternLogger(quietLogger()))

	batch, err := l.ListAsTasks(ctx, "mem://bucket/*.csv", "", popts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(batch.Tasks))
	}

	_, err = l.ListAsTasks(ctx, "mem://bucket/*.csv", "", popts,
		datafile.WithTaskMissingPolicy(datafile.MissingRaise))
	if !datafile.IsPatternNotFound(err) {
		t.Errorf("expected pattern not found, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "task get_file_list__1") {
		t.Errorf("expected the task id in the error, got %v", err)
	}
}

func TestListAsTasksDispatchError(t *testing.T) {
	r, _ := memResolver(t)
	seed(t, r, "mem://bucket/a.csv")

	_, err := datafile.NewTaskLister().ListAsTasks(context.Background(), "mem://bucket/*.csv", "",
		datafile.WithTaskPatternOptions(datafile.WithPatternResolver(r)),
		datafile.WithDispatcher(datafile.DispatcherFunc(func(context.Context, *datafile.TaskBatch) error {
			return errors.New("queue full")
		})))
	if err == nil || !strings.Contains(err.Error(), "dispatch: queue full") {
		t.Errorf("expected dispatch error, got %v", err)
	}
}
