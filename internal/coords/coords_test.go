package coords

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.InDelta(t, 0, Wrap(0), 1e-12)
	assert.InDelta(t, math.Pi, Wrap(-math.Pi), 1e-12)
	assert.InDelta(t, 1, Wrap(1+4*math.Pi), 1e-12)
	assert.Less(t, Wrap(-1e-18), FullTurn)
}

func TestDiff(t *testing.T) {
	assert.InDelta(t, 0.2, Diff(0.1, FullTurn-0.1), 1e-12)
	assert.InDelta(t, -0.2, Diff(FullTurn-0.1, 0.1), 1e-12)
}

func TestTransformRoundTrip(t *testing.T) {
	sites := []struct{ lat, lon float64 }{
		{51.4772 * math.Pi / 180, 0},
		{-33.9 * math.Pi / 180, -18.4 * math.Pi / 180},
		{40.4 * math.Pi / 180, 3.7 * math.Pi / 180},
	}
	gst := GreenwichSiderealTime(time.Date(2026, 1, 15, 22, 30, 0, 0, time.UTC))
	for _, site := range sites {
		for _, ra := range []float64{0.1, 1, 2, 3, math.Pi, 4, 5, 6, 1.99 * math.Pi} {
			for _, dec := range []float64{-0.49 * math.Pi, -1.1, -1, 0, 0.001, 1.55, 0.49 * math.Pi} {
				alt, az := EquatorialToAltAz(ra, dec, site.lat, site.lon, gst)
				gotRA, gotDec := AltAzToEquatorial(alt, az, site.lat, site.lon, gst)
				assert.InDelta(t, 0, Diff(gotRA, ra), 1e-4, "ra=%g dec=%g", ra, dec)
				assert.InDelta(t, dec, gotDec, 1e-4, "ra=%g dec=%g", ra, dec)
			}
		}
	}
}

func TestTransformOutputsInRange(t *testing.T) {
	alt, az := EquatorialToAltAz(5, -0.3, 0.9, 0.1, 2)
	assert.GreaterOrEqual(t, az, 0.0)
	assert.Less(t, az, FullTurn)
	assert.LessOrEqual(t, math.Abs(alt), math.Pi/2)

	// Zenith from the pole: acos input is 0/0 territory.
	ra, dec := AltAzToEquatorial(math.Pi/2, 0, math.Pi/2, 0, 1)
	assert.False(t, math.IsNaN(ra))
	assert.InDelta(t, math.Pi/2, dec, 1e-9)
}

func TestGreenwichSiderealTime(t *testing.T) {
	// Meeus example 12.a: 1987 April 10, 0h UT -> 13h10m46.3668s.
	gst := GreenwichSiderealTime(time.Date(1987, 4, 10, 0, 0, 0, 0, time.UTC))
	want := (13*3600 + 10*60 + 46.3668) * math.Pi / 43200
	assert.InDelta(t, want, gst, 1e-6)
}

func TestFormatRA(t *testing.T) {
	cases := []struct {
		ra     float64
		hhmmss string
		hhmmt  string
	}{
		{0, "00:00:00#", "00:00.0#"},
		{math.Pi, "12:00:00#", "12:00.0#"},
		{1.84096, "07:01:55#", "07:01.9#"},
		{FullTurn - 1e-9, "00:00:00#", "00:00.0#"},
		{-math.Pi / 2, "18:00:00#", "18:00.0#"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.hhmmss, FormatHHMMSS(tc.ra), "ra=%g", tc.ra)
		assert.Equal(t, tc.hhmmt, FormatHHMMT(tc.ra), "ra=%g", tc.ra)
	}
}

func TestFormatDec(t *testing.T) {
	cases := []struct {
		dec     float64
		sddmmss string
		sddmm   string
	}{
		{0, "+00*00:00#", "+00*00#"},
		{1.0, "+57*17:45#", "+57*18#"},
		{-0.3984, "-22*49:36#", "-22*50#"},
		{math.Pi / 2, "+90*00:00#", "+90*00#"},
		// 59.99 arcseconds rounds up and carries into the minutes.
		{59.99 / 3600 * math.Pi / 180, "+00*01:00#", "+00*01#"},
		{(59.0/60 + 59.99/3600) * math.Pi / 180, "+01*00:00#", "+01*00#"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.sddmmss, FormatSDDMMSS(tc.dec), "dec=%g", tc.dec)
		assert.Equal(t, tc.sddmm, FormatSDDMM(tc.dec), "dec=%g", tc.dec)
	}
}

func TestParseHHMM(t *testing.T) {
	cases := map[string]float64{
		"00:02.3":   0.010035643198967393,
		"00:02.4":   0.010471975511965976,
		"00:02:17":  0.009962921146800963,
		"00:02:18":  0.010035643198967393,
		"12:00:00":  math.Pi,
		"07:01:55":  1.84096,
		" 07:01:55": 1.84096,
	}
	for in, want := range cases {
		got, err := ParseHHMM(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-5, in)
	}
}

func TestParseHHMMRejects(t *testing.T) {
	for _, in := range []string{"", "99:99", "24:00:00", "07:60:00", "07:01:60", "ab:cd:ef", "07:01.23", "1:2:3:4"} {
		_, err := ParseHHMM(in)
		var pe *ParseError
		require.ErrorAs(t, err, &pe, in)
		assert.Equal(t, "right ascension", pe.Field)
	}
}

func TestParseSDDMM(t *testing.T) {
	cases := map[string]float64{
		"+00*01":       0.000290888208666,
		"+00*01:00":    0.000290888208666,
		"+57*17:45":    1.0,
		"+57*18":       1.0,
		"+22*49:43":    0.3984,
		"-22*49:43":    -0.3984,
		"+22\xdf49:43": 0.3984,
		"+22*49'43":    0.3984,
		"22*49:43":     0.3984,
		" +22*49:43 ":  0.3984,
		"-00*30":       -0.5 * math.Pi / 180,
	}
	for in, want := range cases {
		got, err := ParseSDDMM(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-4, in)
	}
}

func TestParseSDDMMRejects(t *testing.T) {
	for _, in := range []string{"", "+22", "+91*00", "+90*00:01", "+22*60", "+22*49:61", "x22*49"} {
		_, err := ParseSDDMM(in)
		assert.Error(t, err, in)
	}
}

func TestParseDDDMM(t *testing.T) {
	got, err := ParseDDDMM("003*42")
	require.NoError(t, err)
	assert.InDelta(t, 3.7*math.Pi/180, got, 1e-9)

	got, err = ParseDDDMM("-118*15")
	require.NoError(t, err)
	assert.InDelta(t, -118.25*math.Pi/180, got, 1e-9)

	got, err = ParseDDDMM("003*08'")
	require.NoError(t, err)
	assert.InDelta(t, (3+8.0/60)*math.Pi/180, got, 1e-9)

	_, err = ParseDDDMM("361*00")
	assert.Error(t, err)
}

func TestParseTimezone(t *testing.T) {
	tz, err := ParseTimezone("-05.0")
	require.NoError(t, err)
	assert.Equal(t, -5.0, tz)

	tz, err = ParseTimezone("+01")
	require.NoError(t, err)
	assert.Equal(t, 1.0, tz)

	for _, in := range []string{"", "abc", "+25", "NaN"} {
		_, err := ParseTimezone(in)
		assert.Error(t, err, in)
	}
}

func TestAngleFormatRoundTrip(t *testing.T) {
	for x := -math.Pi / 2; x <= math.Pi/2; x += 0.01 {
		got, err := ParseSDDMM(strings.TrimSuffix(FormatSDDMMSS(x), "#"))
		require.NoError(t, err)
		assert.InDelta(t, x, got, 0.0002)
	}
	for x := 0.0; x <= FullTurn; x += 0.01 {
		got, err := ParseHHMM(strings.TrimSuffix(FormatHHMMSS(x), "#"))
		require.NoError(t, err)
		assert.InDelta(t, 0, Diff(got, x), 0.0002)

		got, err = ParseHHMM(strings.TrimSuffix(FormatHHMMT(x), "#"))
		require.NoError(t, err)
		assert.InDelta(t, 0, Diff(got, x), 0.0005)
	}
}

func TestNexStar(t *testing.T) {
	assert.Equal(t, "8000,2000#", FormatNexStar(math.Pi, math.Pi/4, false))
	assert.Equal(t, "80000000,E0000000#", FormatNexStar(math.Pi, -math.Pi/4, true))

	ra, dec, err := ParseNexStar("8000,E000", false)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi, ra, 1e-12)
	assert.InDelta(t, -math.Pi/4, dec, 1e-12)

	ra, dec, err = ParseNexStar("40000000,20000000", true)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, ra, 1e-12)
	assert.InDelta(t, math.Pi/4, dec, 1e-12)

	for _, in := range []string{"8000", "8000,XYZW", "80000,2000", "8000,8000"} {
		_, _, err := ParseNexStar(in, false)
		assert.Error(t, err, in)
	}
}
