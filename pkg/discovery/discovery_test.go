package discovery

import (
	"errors"
	"strings"
	"testing"
)

func TestTXTRoundTrip(t *testing.T) {
	info := &Info{NodeID: "node-1", TLS: true, Methods: []string{"time", "echo"}}

	strs := TXTRecordsToStrings(EncodeTXT(info))
	want := []string{"api=echo,time", "id=node-1", "tls=1", "v=1"}
	if strings.Join(strs, " ") != strings.Join(want, " ") {
		t.Errorf("TXT = %v, want %v", strs, want)
	}

	got, err := DecodeTXT(StringsToTXTRecords(strs))
	if err != nil {
		t.Fatalf("DecodeTXT: %v", err)
	}
	if got.NodeID != "node-1" || !got.TLS {
		t.Errorf("DecodeTXT = %+v", got)
	}
	if strings.Join(got.Methods, ",") != "echo,time" {
		t.Errorf("Methods = %v", got.Methods)
	}
}

func TestDecodeTXT(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		wantErr error
	}{
		{"minimal", TXTRecordMap{"v": "1", "id": "n"}, nil},
		{"tls off", TXTRecordMap{"v": "1", "id": "n", "tls": "0"}, nil},
		{"missing version", TXTRecordMap{"id": "n"}, ErrMissingRequired},
		{"future version", TXTRecordMap{"v": "2", "id": "n"}, ErrUnsupportedVersion},
		{"missing id", TXTRecordMap{"v": "1"}, ErrMissingRequired},
		{"bad tls", TXTRecordMap{"v": "1", "id": "n", "tls": "yes"}, ErrInvalidTXTRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTXT(tt.txt)
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "flag", "b=x=y", "", "=orphan"})
	if len(txt) != 3 {
		t.Fatalf("len = %d, want 3: %v", len(txt), txt)
	}
	if txt["a"] != "1" || txt["b"] != "x=y" {
		t.Errorf("txt = %v", txt)
	}
	if v, ok := txt["flag"]; !ok || v != "" {
		t.Errorf("flag = %q, %v", v, ok)
	}
}

func TestValidateInstanceName(t *testing.T) {
	if err := ValidateInstanceName("upnode server"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
	if err := ValidateInstanceName(""); !errors.Is(err, ErrEmptyInstanceName) {
		t.Errorf("empty name: %v", err)
	}
	if err := ValidateInstanceName(strings.Repeat("x", 64)); !errors.Is(err, ErrInstanceNameTooLong) {
		t.Errorf("long name: %v", err)
	}
}

func TestServiceAddress(t *testing.T) {
	tests := []struct {
		name    string
		svc     Service
		want    string
		wantErr error
	}{
		{"prefers ipv4", Service{Port: 7000, Addresses: []string{"fe80::1", "192.168.1.5"}}, "192.168.1.5:7000", nil},
		{"ipv6 only", Service{Port: 7000, Addresses: []string{"fe80::1"}}, "[fe80::1]:7000", nil},
		{"host fallback", Service{Host: "box.local.", Port: 7000}, "box.local.:7000", nil},
		{"nothing", Service{Port: 7000}, "", ErrNoAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.svc.Address()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	svc := newService("srv", "box.local.", 7000, []string{"v=1", "id=abc"}, []string{"10.0.0.2"})
	if svc == nil {
		t.Fatal("newService returned nil")
	}
	if svc.Info.Instance != "srv" || svc.Info.Port != 7000 || svc.Info.NodeID != "abc" {
		t.Errorf("Info = %+v", svc.Info)
	}

	if svc := newService("other", "x", 1, []string{"id=abc"}, nil); svc != nil {
		t.Errorf("entry without version accepted: %+v", svc)
	}
}

func TestAddressMerging(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "fe80::1"})
	if strings.Join(addrs, ",") != "10.0.0.1,fe80::1" {
		t.Errorf("merge = %v", addrs)
	}
	addrs = removeAddresses(addrs, []string{"10.0.0.1"})
	if strings.Join(addrs, ",") != "fe80::1" {
		t.Errorf("remove = %v", addrs)
	}
}

func TestAdvertiserRejectsInvalidInfo(t *testing.T) {
	a := NewAdvertiser(AdvertiserConfig{})
	if err := a.Advertise(&Info{Port: 7000}); !errors.Is(err, ErrEmptyInstanceName) {
		t.Errorf("empty instance: %v", err)
	}
	if err := a.Advertise(&Info{Instance: "x"}); err == nil {
		t.Error("zero port accepted")
	}
	if err := a.Update(&Info{Instance: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update unknown: %v", err)
	}
	if err := a.Stop("x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stop unknown: %v", err)
	}
	if len(a.Instances()) != 0 {
		t.Error("instances registered")
	}
}
