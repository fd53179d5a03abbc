package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

type fakeReader struct {
	codes  map[string]string
	calls  int
	closed bool
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.calls++
	code, ok := f.codes[ip.String()]
	if !ok {
		return nil, errors.New("address not found")
	}
	rec := &geoip2.Country{}
	rec.Country.IsoCode = code
	return rec, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestNewResolverWithoutPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil resolver for empty path, got %#v", r)
	}
}

func TestNewResolverMissingFile(t *testing.T) {
	if _, err := NewResolver(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestCountryCodeCachesLookups(t *testing.T) {
	reader := &fakeReader{codes: map[string]string{"203.0.113.4": "CN"}}
	r := newResolver(reader)

	for i := 0; i < 3; i++ {
		code, err := r.CountryCode("203.0.113.4")
		if err != nil || code != "CN" {
			t.Fatalf("CountryCode = %q, %v", code, err)
		}
	}
	if reader.calls != 1 {
		t.Fatalf("expected one database lookup, got %d", reader.calls)
	}
}

func TestCountryCodeSkipsPrivateAddresses(t *testing.T) {
	reader := &fakeReader{}
	r := newResolver(reader)
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.9", "::1"} {
		code, err := r.CountryCode(ip)
		if err != nil || code != "" {
			t.Fatalf("CountryCode(%s) = %q, %v", ip, code, err)
		}
	}
	if reader.calls != 0 {
		t.Fatalf("private addresses should not hit the database, got %d calls", reader.calls)
	}
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid ip")
	}
	if err := r.Close(); err != nil || !reader.closed {
		t.Fatalf("Close = %v, closed = %v", err, reader.closed)
	}
}

func TestZeroResolverUnavailable(t *testing.T) {
	var r *Resolver
	if _, err := r.CountryCode("203.0.113.4"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}
