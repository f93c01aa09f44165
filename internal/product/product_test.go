package product

import (
	"errors"
	"testing"
	"time"
)

func TestTimeFromID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "canonical id",
			id:   "MSG3-SEVI-MSG15-0100-NA-20150731221240.036000000Z-NA",
			want: time.Date(2015, 7, 31, 22, 12, 0, 0, time.UTC),
		},
		{
			name: "different platform",
			id:   "MSG4-SEVI-MSG15-0100-NA-20231231171242.800000000Z-NA",
			want: time.Date(2023, 12, 31, 17, 12, 0, 0, time.UTC),
		},
		{
			name:    "not a product id",
			id:      "seviri_20150731_22_12.nc",
			wantErr: true,
		},
		{
			name:    "month out of range",
			id:      "MSG3-SEVI-MSG15-0100-NA-20151331221240.036000000Z-NA",
			wantErr: true,
		},
		{
			name:    "empty",
			id:      "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TimeFromID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TimeFromID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("error type = %T, want *ParseError", err)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("TimeFromID() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFilenameFromID(t *testing.T) {
	got, err := FilenameFromID(PrefixInput, "MSG3-SEVI-MSG15-0100-NA-20150731221240.036000000Z-NA")
	if err != nil {
		t.Fatalf("FilenameFromID() error = %v", err)
	}
	if got != "seviri_20150731_22_12.nc" {
		t.Errorf("FilenameFromID() = %q, want %q", got, "seviri_20150731_22_12.nc")
	}

	got, err = FilenameFromID(PrefixOutput, "MSG3-SEVI-MSG15-0100-NA-20150731221240.036000000Z-NA")
	if err != nil {
		t.Fatalf("FilenameFromID() error = %v", err)
	}
	if got != "chimp_20150731_22_12.nc" {
		t.Errorf("FilenameFromID() = %q, want %q", got, "chimp_20150731_22_12.nc")
	}
}

func TestTimeFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    time.Time
		wantErr bool
	}{
		{
			name: "bare filename",
			path: "seviri_20150731_22_12.nc",
			want: time.Date(2015, 7, 31, 22, 12, 0, 0, time.UTC),
		},
		{
			name: "absolute path",
			path: "/data/products/2015/07/31/chimp_20150731_22_12.nc",
			want: time.Date(2015, 7, 31, 22, 12, 0, 0, time.UTC),
		},
		{
			name: "other extension",
			path: "prefix_20200101_00_12.extension",
			want: time.Date(2020, 1, 1, 0, 12, 0, 0, time.UTC),
		},
		{
			name:    "no timestamp",
			path:    "readme.txt",
			wantErr: true,
		},
		{
			name:    "missing prefix",
			path:    "_20150731_22_12.nc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TimeFromFilename(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TimeFromFilename() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("TimeFromFilename() = %s, want %s", got, tt.want)
			}
		})
	}
}

// The verify stage parses filenames that the fetch stage generated; the two
// directions must agree exactly at minute resolution.
func TestFilenameRoundTrip(t *testing.T) {
	instants := []time.Time{
		time.Date(2015, 7, 31, 22, 12, 0, 0, time.UTC),
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC),
	}

	for _, want := range instants {
		for _, prefix := range []Prefix{PrefixInput, PrefixOutput} {
			got, err := TimeFromFilename(Filename(prefix, want))
			if err != nil {
				t.Fatalf("TimeFromFilename(Filename(%s, %s)) error = %v", prefix, want, err)
			}
			if !got.Equal(want) {
				t.Errorf("round trip via %s = %s, want %s", prefix, got, want)
			}
		}
	}
}

// An identifier and the file fetched for it must map to the same timestamp.
func TestIDAndFilenameAgree(t *testing.T) {
	const id = "MSG3-SEVI-MSG15-0100-NA-20150731221240.036000000Z-NA"

	fromID, err := TimeFromID(id)
	if err != nil {
		t.Fatalf("TimeFromID() error = %v", err)
	}

	name, err := FilenameFromID(PrefixInput, id)
	if err != nil {
		t.Fatalf("FilenameFromID() error = %v", err)
	}

	fromFile, err := TimeFromFilename(name)
	if err != nil {
		t.Fatalf("TimeFromFilename() error = %v", err)
	}

	if !fromID.Equal(fromFile) {
		t.Errorf("identifier timestamp %s != filename timestamp %s", fromID, fromFile)
	}
}
