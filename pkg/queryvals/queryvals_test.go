package queryvals

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/queryvals/internal/logger"
	"github.com/roach88/queryvals/internal/sink"
	"github.com/roach88/queryvals/internal/store"
	"github.com/roach88/queryvals/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type priority int32

type task struct {
	ID       int32
	Title    *string
	Priority priority
	Budget   decimal.Decimal
	Due      *time.Time
}

type elevenInts struct {
	A0, A1, A2, A3, A4, A5, A6, A7, A8, A9, A10 int32
}

func str(s string) *string { return &s }

func formats() map[string]Capability {
	return map[string]Capability{
		"markup":       CapabilityMarkup,
		"token_stream": CapabilityTokenStream,
	}
}

func TestExecute_ScalarRoundTrip(t *testing.T) {
	for name, capability := range formats() {
		t.Run(name, func(t *testing.T) {
			c := New(WithCapability(capability))
			ctx := context.Background()
			ref := sink.NewReference()

			ints := []int64{3, -1, math.MaxInt64, 0}
			qi, err := Compose(c, FromSlice(&ints))
			require.NoError(t, err)
			gotInts, err := qi.Execute(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, ints, gotInts)

			strs := []string{"", "plain", "A<&\"'", "line\nbreak", "😀"}
			qs, err := Compose(c, FromSlice(&strs))
			require.NoError(t, err)
			gotStrs, err := qs.Execute(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, strs, gotStrs)

			prios := []priority{1, 2, 3}
			qp, err := Compose(c, FromSlice(&prios))
			require.NoError(t, err)
			gotPrios, err := qp.Execute(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, prios, gotPrios)
		})
	}
}

func TestExecute_RecordRoundTrip(t *testing.T) {
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tasks := []task{
		{ID: 1, Title: str("write"), Priority: 2, Budget: decimal.RequireFromString("10.25"), Due: &due},
		{ID: 2, Priority: 1, Budget: decimal.RequireFromString("-0.5")},
	}

	for name, capability := range formats() {
		t.Run(name, func(t *testing.T) {
			q, err := Compose(New(WithCapability(capability)), FromSlice(&tasks))
			require.NoError(t, err)

			got, err := q.Execute(context.Background(), sink.NewReference())
			require.NoError(t, err)
			require.Len(t, got, 2)

			assert.Equal(t, int32(1), got[0].ID)
			require.NotNil(t, got[0].Title)
			assert.Equal(t, "write", *got[0].Title)
			assert.Equal(t, priority(2), got[0].Priority)
			assert.True(t, tasks[0].Budget.Equal(got[0].Budget))
			require.NotNil(t, got[0].Due)
			assert.True(t, due.Equal(*got[0].Due))

			assert.Nil(t, got[1].Title)
			assert.Nil(t, got[1].Due)
			assert.True(t, tasks[1].Budget.Equal(got[1].Budget))
		})
	}
}

func TestExecute_SkipsNullElements(t *testing.T) {
	items := []*string{str("a"), nil, str("b"), nil, nil, str("c")}

	for name, capability := range formats() {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.UseRowBoundHint = true
			cfg.TokenStream = string(capability)

			q, err := Compose(New(WithConfig(cfg)), FromSlice(&items))
			require.NoError(t, err)

			_, params, err := q.Prepare()
			require.NoError(t, err)
			require.Len(t, params, 2)
			assert.Equal(t, int32(3), params[1].Value, "count is the retained elements")

			got, err := q.Execute(context.Background(), sink.NewReference())
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "a", *got[0])
			assert.Equal(t, "b", *got[1])
			assert.Equal(t, "c", *got[2])
		})
	}
}

func TestPrepare_CountMatchesPayloadOnLiveGenerator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseRowBoundHint = true
	g := testutil.NewShrinkingGenerator(4)

	q, err := Compose(New(WithConfig(cfg)), FromFunc(g.Seq))
	require.NoError(t, err)
	assert.Equal(t, 0, g.Passes(), "compose never enumerates")

	for want := 4; want >= 0; want-- {
		_, params, err := q.Prepare()
		require.NoError(t, err)
		payload := params[0].Value.(string)
		assert.Equal(t, want, strings.Count(payload, "<V "))
		assert.Equal(t, int32(want), params[1].Value)
	}
	assert.Equal(t, 5, g.Passes(), "one pass per execution")
}

func TestExecute_ObservesMutationBetweenExecutions(t *testing.T) {
	items := []int32{1, 2}
	q, err := Compose(New(), FromSlice(&items))
	require.NoError(t, err)
	ref := sink.NewReference()

	got, err := q.Execute(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, got)

	items = append(items, 3)
	got, err = q.Execute(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, got)
}

func TestExecute_EnumerateOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enumeration = "once"

	items := []int32{1, 2}
	q, err := Compose(New(WithConfig(cfg)), FromSlice(&items))
	require.NoError(t, err)
	ref := sink.NewReference()

	_, err = q.Execute(context.Background(), ref)
	require.NoError(t, err)

	items = append(items, 3)
	got, err := q.Execute(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, got, "the first snapshot is reused")
}

func TestCompose_FailsBeforeEnumeration(t *testing.T) {
	var counter testutil.PassCounter
	ints := FromSeq(testutil.Counting(&counter, func(yield func(elevenInts) bool) {}))

	_, err := Compose(New(), ints)
	assert.ErrorIs(t, err, ErrSlotPoolExhausted)

	_, err = Compose(New(), FromSeq(testutil.Counting(&counter, func(yield func(uint64) bool) {})))
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	cfg := DefaultConfig()
	cfg.DefaultDecimalScale = 39
	_, err = Compose(New(WithConfig(cfg)), FromSeq(testutil.Counting(&counter, func(yield func(decimal.Decimal) bool) {})))
	assert.ErrorIs(t, err, ErrInvalidScale)

	assert.Equal(t, 0, counter.Passes())
}

func TestCompose_CapabilitySelectsFormat(t *testing.T) {
	items := []int32{1}

	q, err := Compose(New(), FromSlice(&items))
	require.NoError(t, err)
	assert.Contains(t, q.Statement().SQL, "nodes('/R/V')", "unknown capability falls back to markup")

	q, err = Compose(New(WithCapability(CapabilityTokenStream)), FromSlice(&items))
	require.NoError(t, err)
	assert.Contains(t, q.Statement().SQL, "OPENJSON(@p0)")

	q, err = Compose(New(WithDialect("sqlite")), FromSlice(&items))
	require.NoError(t, err)
	assert.Contains(t, q.Statement().SQL, "json_each(?1)")

	_, err = Compose(New(WithDialect("sqlite"), WithCapability(CapabilityMarkup)), FromSlice(&items))
	assert.ErrorIs(t, err, ErrFormatUnsupported)
}

func TestCompose_SharesStatements(t *testing.T) {
	c := New()
	a := []task{}
	b := []task{{ID: 1}}

	qa, err := Compose(c, FromSlice(&a))
	require.NoError(t, err)
	qb, err := Compose(c, FromSlice(&b))
	require.NoError(t, err)
	assert.Same(t, qa.Statement(), qb.Statement())
}

func TestPrepare_PayloadParamType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultTextIsUnicode = false
	items := []string{"x"}

	q, err := Compose(New(WithConfig(cfg)), FromSlice(&items))
	require.NoError(t, err)
	_, params, err := q.Prepare()
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "text", params[0].Type.String())

	cfg.FieldIsUnicode = map[string]bool{"Title": true}
	tasks := []task{}
	qt, err := Compose(New(WithConfig(cfg)), FromSlice(&tasks))
	require.NoError(t, err)
	_, params, err = qt.Prepare()
	require.NoError(t, err)
	assert.Equal(t, "unicode_text", params[0].Type.String())
}

func TestPrepare_MarkupSpecialFloats(t *testing.T) {
	items := []float32{float32(math.Inf(-1)), float32(math.Inf(1)), float32(math.Copysign(0, -1))}
	q, err := Compose(New(), FromSlice(&items))
	require.NoError(t, err)

	_, params, err := q.Prepare()
	require.NoError(t, err)
	assert.Equal(t, `<R><V X="0">-INF</V><V X="1">INF</V><V X="2">-0</V></R>`, params[0].Value)

	tq, err := Compose(New(WithCapability(CapabilityTokenStream)), FromSlice(&items))
	require.NoError(t, err)
	_, _, err = tq.Prepare()
	assert.ErrorIs(t, err, ErrNonFiniteFloat)
}

func TestExecute_DecimalScale(t *testing.T) {
	items := []decimal.Decimal{decimal.RequireFromString("-999999999999.999999")}

	got, err := mustCompose(t, New(), &items).Execute(context.Background(), sink.NewReference())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, items[0].Equal(got[0]))

	cfg := DefaultConfig()
	cfg.DefaultDecimalScale = 0
	got, err = mustCompose(t, New(WithConfig(cfg)), &items).Execute(context.Background(), sink.NewReference())
	require.NoError(t, err)
	assert.Equal(t, "-999999999999", got[0].String())
}

func mustCompose[T any](t *testing.T, c *Composer, items *[]T) *Query[T] {
	t.Helper()
	q, err := Compose(c, FromSlice(items))
	require.NoError(t, err)
	return q
}

type spanRow struct {
	From int32
	To   int32
}

type label struct {
	text string
}

func TestCompose_WithConstructor(t *testing.T) {
	c := New()
	require.NoError(t, c.RegisterConstructor(func(from, to int32) spanRow {
		if from > to {
			from, to = to, from
		}
		return spanRow{From: from, To: to}
	}))

	items := []spanRow{{From: 1, To: 5}, {From: 9, To: 6}}
	got, err := mustCompose(t, c, &items).Execute(context.Background(), sink.NewReference())
	require.NoError(t, err)
	assert.Equal(t, []spanRow{{From: 1, To: 5}, {From: 6, To: 9}}, got)

	ptrs := []*spanRow{{From: 3, To: 2}}
	gotPtrs, err := mustCompose(t, c, &ptrs).Execute(context.Background(), sink.NewReference())
	require.NoError(t, err)
	require.Len(t, gotPtrs, 1)
	assert.Equal(t, spanRow{From: 2, To: 3}, *gotPtrs[0])

	_, err = Compose(New(), FromSlice(&[]label{}))
	assert.ErrorIs(t, err, ErrMissingAccessor)
}

func TestComposeValues_StructOf(t *testing.T) {
	rowType := reflect.StructOf([]reflect.StructField{
		{Name: "Code", Type: reflect.TypeFor[string]()},
		{Name: "Qty", Type: reflect.TypeFor[*int16]()},
	})
	first := reflect.New(rowType).Elem()
	first.Field(0).SetString("A1")
	qty := int16(4)
	first.Field(1).Set(reflect.ValueOf(&qty))
	second := reflect.New(rowType).Elem()
	second.Field(0).SetString("B2")

	values := []reflect.Value{first, second}
	q, err := ComposeValues(New(WithCapability(CapabilityTokenStream)), rowType, FromSlice(&values))
	require.NoError(t, err)

	got, err := q.Execute(context.Background(), sink.NewReference())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A1", got[0].Field(0).String())
	assert.Equal(t, int16(4), got[0].Field(1).Elem().Interface())
	assert.True(t, got[1].Field(1).IsNil())
}

func TestExecute_SQLite(t *testing.T) {
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	cfg := DefaultConfig()
	cfg.Dialect = "sqlite"
	cfg.UseRowBoundHint = true
	cfg.StatementCacheSize = 8
	c := New(WithConfig(cfg))
	defer c.Close()

	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.FixedZone("", -7*60*60))
	tasks := []task{
		{ID: 10, Title: str("ship"), Priority: 3, Budget: decimal.RequireFromString("99.999999"), Due: &due},
		{ID: 11, Priority: 1},
	}
	q, err := Compose(c, FromSlice(&tasks))
	require.NoError(t, err)
	assert.False(t, q.Statement().UsesCount)

	got, err := q.Execute(context.Background(), sink.NewSQLite(s, nil))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int32(10), got[0].ID)
	assert.Equal(t, "ship", *got[0].Title)
	assert.Equal(t, priority(3), got[0].Priority)
	assert.True(t, tasks[0].Budget.Equal(got[0].Budget))
	assert.True(t, due.Equal(*got[0].Due))
	assert.Nil(t, got[1].Title)
	assert.Nil(t, got[1].Due)
}

func TestExecute_LogsExecution(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := DefaultConfig()
	cfg.Enumeration = "once"
	c := New(WithConfig(cfg), WithLogger(&logger.ZapLogger{Logger: zap.New(core)}))

	items := []int32{4, 5}
	q, err := Compose(c, FromSlice(&items))
	require.NoError(t, err)
	_, err = q.Execute(context.Background(), sink.NewReference())
	require.NoError(t, err)

	executed := logs.FilterMessage("executed query").All()
	require.Len(t, executed, 1)
	fields := executed[0].ContextMap()
	assert.Equal(t, "once", fields["enumeration"])
	assert.Equal(t, "markup", fields["format"])
	assert.Equal(t, int64(2), fields["rows"])
}

func TestExecute_ZeroDates(t *testing.T) {
	type event struct {
		ID int32
		At time.Time
	}
	items := []event{{ID: 1}, {ID: 2, At: time.Date(9999, 12, 31, 23, 59, 59, 999999900, time.UTC)}}

	for name, capability := range formats() {
		t.Run(name, func(t *testing.T) {
			got, err := mustCompose(t, New(WithCapability(capability)), &items).Execute(context.Background(), sink.NewReference())
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.True(t, got[0].At.IsZero())
			assert.True(t, items[1].At.Equal(got[1].At))
		})
	}

	late := []time.Time{time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}
	_, _, err := mustCompose(t, New(), &late).Prepare()
	assert.ErrorIs(t, err, ErrInvalidDateTime)
}
