package release

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashA = "0123456789abcdef0123456789abcdef01234567"
	hashB = "89abcdef0123456789abcdef0123456789abcdef"
)

func scaled(v, mult float64) uint64 {
	return uint64(v * mult)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"7.5 GB", 8053063680},
		{"700 MB", 700 * 1024 * 1024},
		{"1.2 TB", scaled(1.2, 1024*1024*1024*1024)},
		{"512 KB", 512 * 1024},
		{"900 B", 900},
		{"4.7GiB", scaled(4.7, 1024*1024*1024)},
		{"1,536 MB", 1536 * 1024 * 1024},
		{"42 parsecs", 42},
		{"", 0},
		{"unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSize(tt.in))
		})
	}
}

func TestParseSize_ExactBinaryMultipliers(t *testing.T) {
	assert.Equal(t, uint64(7.5*1024*1024*1024), ParseSize("7.5 GB"))
	assert.Equal(t, uint64(700*1024*1024), ParseSize("700 MB"))
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "torrentio layout",
			raw:  "Dune.Part.Two.2024.2160p.WEB-DL.DDP5.1.Atmos.DV.HDR.H.265\n👤 152 💾 24.3 GB ⚙️ TorrentGalaxy",
			want: "Dune.Part.Two.2024.2160p.WEB-DL.DDP5.1.Atmos.DV.HDR.H.265",
		},
		{
			name: "pack name then file name",
			raw:  "\nDune Collection\n👤 10\n💾 80 GB ⚙️ 1337x",
			want: "Dune Collection",
		},
		{
			name: "size marker on first line",
			raw:  "👤 3 💾 1.4 GB\nHeat.1995.1080p.BluRay",
			want: "Heat.1995.1080p.BluRay",
		},
		{
			name: "no size marker falls back to raw",
			raw:  "  Heat.1995.1080p.BluRay\nsecond line  ",
			want: "Heat.1995.1080p.BluRay\nsecond line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTitle(tt.raw))
		})
	}
}

func TestNormalize(t *testing.T) {
	raws := []Raw{
		{Title: "Heat.1995.1080p.BluRay\n👤 40 💾 12.5 GB ⚙️ YTS", InfoHash: strings.ToUpper(hashA)},
		{Title: "Heat.1995.720p", Size: "700 MB", InfoHash: ""},
		{Title: "Heat.1995.2160p", Size: "40 GB", InfoHash: "not-a-hash"},
		{Title: "Heat.1995.1080p duplicate", Size: "1 GB", InfoHash: hashA},
		{Title: "Heat.1995.2160p.REMUX", Size: "60 GB", InfoHash: "  " + hashB + " "},
	}

	got := Normalize(raws, zerolog.Nop())
	require.Len(t, got, 2)

	assert.Equal(t, Candidate{
		Title:     "Heat.1995.1080p.BluRay",
		SizeBytes: uint64(12.5 * 1024 * 1024 * 1024),
		Hash:      hashA,
	}, got[0])
	assert.Equal(t, hashB, got[1].Hash)
	assert.Equal(t, uint64(60*1024*1024*1024), got[1].SizeBytes)
}

func TestNormalizeHash(t *testing.T) {
	h, err := NormalizeHash(strings.ToUpper(hashA))
	require.NoError(t, err)
	assert.Equal(t, hashA, h)

	_, err = NormalizeHash("")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = NormalizeHash(hashA[:39])
	assert.ErrorIs(t, err, ErrInvalidHash)
}
