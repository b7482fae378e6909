package discovery

import (
	"reflect"
	"slices"
	"testing"
)

func TestServerTXTEncode(t *testing.T) {
	txt := ServerTXT{
		Software:   "traverse",
		Transports: []string{"udp", "tcp"},
		Extra:      map[string]string{"zone": "b", "realm": "example.org"},
	}

	want := []string{"software=traverse", "transport=udp,tcp", "realm=example.org", "zone=b"}
	if got := txt.Encode(); !slices.Equal(got, want) {
		t.Errorf("Encode() = %v, want %v", got, want)
	}

	if got := (ServerTXT{}).Encode(); len(got) != 0 {
		t.Errorf("Encode() of empty = %v, want none", got)
	}
}

func TestParseServerTXT(t *testing.T) {
	got := ParseServerTXT([]string{"software=traverse", "transport=udp", "realm=example.org"})
	want := ServerTXT{
		Software:   "traverse",
		Transports: []string{"udp"},
		Extra:      map[string]string{"realm": "example.org"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseServerTXT() = %+v, want %+v", got, want)
	}
}

func TestParseTXT(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		want    map[string]string
	}{
		{"empty", nil, map[string]string{}},
		{"pairs", []string{"a=1", "b=2"}, map[string]string{"a": "1", "b": "2"}},
		{"boolean", []string{"flag"}, map[string]string{"flag": ""}},
		{"value with equals", []string{"k=a=b"}, map[string]string{"k": "a=b"}},
		{"first wins", []string{"k=1", "k=2"}, map[string]string{"k": "1"}},
		{"blank skipped", []string{"", "k=1"}, map[string]string{"k": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTXT(tt.records); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTXT() = %v, want %v", got, tt.want)
			}
		})
	}
}
