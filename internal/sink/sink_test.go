package sink

import (
	"context"
	"iter"
	"reflect"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/queryvals/internal/codec"
	"github.com/roach88/queryvals/internal/config"
	"github.com/roach88/queryvals/internal/kind"
	"github.com/roach88/queryvals/internal/schema"
	"github.com/roach88/queryvals/internal/sqltext"
	"github.com/roach88/queryvals/internal/store"
)

type reading struct {
	OK      bool
	Sensor  uint8
	Delta   int16
	Seq     int32
	Total   int64
	Amount  decimal.Decimal
	Ratio   float32
	Value   float64
	Local   civil.DateTime
	At      time.Time
	Grade   kind.Rune
	Label   *string
	Station uuid.UUID
}

func values[T any](xs []T) iter.Seq[reflect.Value] {
	return func(yield func(reflect.Value) bool) {
		for i := range xs {
			if !yield(reflect.ValueOf(&xs[i]).Elem()) {
				return
			}
		}
	}
}

func prepare[T any](t *testing.T, d sqltext.Dialect, f codec.Format, useCount bool, xs []T) (*sqltext.Statement, []sqltext.Param, *schema.Layout) {
	t.Helper()
	l, err := schema.NewMapper().Map(reflect.TypeFor[T]())
	require.NoError(t, err)
	cols, err := schema.Columns(l, config.Default())
	require.NoError(t, err)

	st, err := sqltext.NewGenerator().Generate(sqltext.Request{
		Dialect:        d,
		Format:         f,
		Simple:         l.Simple,
		Columns:        cols,
		UseCount:       useCount,
		UnicodePayload: true,
	})
	require.NoError(t, err)

	var b strings.Builder
	n, err := codec.Encode(&b, f, l, cols, values(xs))
	require.NoError(t, err)
	return st, st.Params(b.String(), n), l
}

func label(s string) *string { return &s }

func sampleReadings() []reading {
	return []reading{
		{
			OK:      true,
			Sensor:  255,
			Delta:   -300,
			Seq:     7,
			Total:   1 << 40,
			Amount:  decimal.RequireFromString("12345.678901"),
			Ratio:   0.25,
			Value:   -1234.5,
			Local:   civil.DateTime{Date: civil.Date{Year: 2024, Month: time.February, Day: 29}, Time: civil.Time{Hour: 23, Minute: 59, Second: 59}},
			At:      time.Date(2024, 1, 2, 3, 4, 5, 600000000, time.FixedZone("", 5*60*60+30*60)),
			Grade:   'é',
			Label:   label(`multi word "label" <with> & 😀`),
			Station: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		},
		{Seq: 8, Grade: 'B'},
	}
}

func assertReadings(t *testing.T, l *schema.Layout, want []reading, rows []schema.Row) {
	t.Helper()
	require.Len(t, rows, len(want))
	for i, row := range rows {
		assert.Equal(t, i, row.Index)
		src := reflect.ValueOf(want[i])
		for _, m := range l.Mappings {
			exp, _ := m.Get(src.FieldByIndex(m.Field.Index))
			got := row.Get(m.Slot)
			switch e := exp.(type) {
			case decimal.Decimal:
				require.IsType(t, decimal.Decimal{}, got, m.Field.Name)
				assert.True(t, e.Equal(got.(decimal.Decimal)), "%s: %s vs %s", m.Field.Name, e, got)
			case time.Time:
				require.IsType(t, time.Time{}, got, m.Field.Name)
				assert.True(t, e.Equal(got.(time.Time)), "%s: %s vs %s", m.Field.Name, e, got)
			default:
				assert.Equal(t, exp, got, m.Field.Name)
			}
		}
	}
}

func TestReference_RoundTrip(t *testing.T) {
	for _, f := range []codec.Format{codec.Markup, codec.TokenStream} {
		t.Run(f.String(), func(t *testing.T) {
			in := sampleReadings()
			st, params, l := prepare(t, sqltext.SQLServer, f, true, in)

			ref := NewReference()
			rows, err := ref.Query(context.Background(), st, params)
			require.NoError(t, err)
			assertReadings(t, l, in, rows)

			calls := ref.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, st.SQL, calls[0].SQL)
			require.Len(t, calls[0].Params, 2)
			assert.Equal(t, int32(2), calls[0].Params[1].Value)
		})
	}
}

func TestReference_ValidatesParams(t *testing.T) {
	st, params, _ := prepare(t, sqltext.SQLServer, codec.Markup, true, []int32{1})
	ref := NewReference()

	_, err := ref.Query(context.Background(), st, params[:1])
	assert.Error(t, err)

	bad := []sqltext.Param{{Name: "p0", Type: sqltext.ParamInt, Value: 1}, params[1]}
	_, err = ref.Query(context.Background(), st, bad)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ref.Query(ctx, st, params)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, ref.Calls())
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewSQLite(s, nil)
}

func TestSQLite_RoundTripRecords(t *testing.T) {
	in := sampleReadings()
	st, params, l := prepare(t, sqltext.SQLite, codec.TokenStream, false, in)

	rows, err := openSQLite(t).Query(context.Background(), st, params)
	require.NoError(t, err)
	assertReadings(t, l, in, rows)
}

func TestSQLite_RoundTripScalars(t *testing.T) {
	sink := openSQLite(t)
	ctx := context.Background()

	strs := []*string{label("a"), nil, label(""), label("tab\tand\nnewline"), nil, label("ü∑😀")}
	st, params, _ := prepare(t, sqltext.SQLite, codec.TokenStream, false, strs)
	rows, err := sink.Query(ctx, st, params)
	require.NoError(t, err)

	var got []string
	for i, row := range rows {
		assert.Equal(t, i, row.Index, "index is contiguous over retained elements")
		got = append(got, row.Get(schema.Slot{Kind: kind.String}).(string))
	}
	assert.Equal(t, []string{"a", "", "tab\tand\nnewline", "ü∑😀"}, got)

	ints := []int64{5, -5, 0, 1 << 53}
	st, params, _ = prepare(t, sqltext.SQLite, codec.TokenStream, false, ints)
	rows, err = sink.Query(ctx, st, params)
	require.NoError(t, err)
	require.Len(t, rows, len(ints))
	for i, row := range rows {
		assert.Equal(t, ints[i], row.Get(schema.Slot{Kind: kind.Int64}))
	}

	decs := []decimal.Decimal{decimal.RequireFromString("-999999999999.999999"), decimal.RequireFromString("0.000001")}
	st, params, _ = prepare(t, sqltext.SQLite, codec.TokenStream, false, decs)
	rows, err = sink.Query(ctx, st, params)
	require.NoError(t, err)
	require.Len(t, rows, len(decs))
	for i, row := range rows {
		got := row.Get(schema.Slot{Kind: kind.Decimal}).(decimal.Decimal)
		assert.True(t, decs[i].Equal(got), "%s vs %s", decs[i], got)
	}
}

func TestSQLite_Empty(t *testing.T) {
	st, params, _ := prepare(t, sqltext.SQLite, codec.TokenStream, false, []int32{})
	rows, err := openSQLite(t).Query(context.Background(), st, params)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLite_RejectsOtherDialects(t *testing.T) {
	st, params, _ := prepare(t, sqltext.SQLServer, codec.TokenStream, false, []int32{1})
	_, err := openSQLite(t).Query(context.Background(), st, params)
	assert.Error(t, err)
}
