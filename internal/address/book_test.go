package address

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

func validAddress() domain.Address {
	return domain.Address{
		FullName: " Asha Rao ",
		Phone:    "9876543210",
		Line1:    "12 MG Road",
		City:     "Bengaluru",
		State:    "karnataka",
		Pincode:  "560001",
	}
}

func TestValidate(t *testing.T) {
	got, err := Validate(validAddress())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != "Karnataka" {
		t.Fatalf("expected canonical state, got %q", got.State)
	}
	if got.FullName != "Asha Rao" {
		t.Fatalf("expected trimmed name, got %q", got.FullName)
	}
	if got.Type != domain.AddressHome {
		t.Fatalf("expected default type HOME, got %q", got.Type)
	}

	cases := []struct {
		name   string
		mutate func(*domain.Address)
		field  string
		want   string
	}{
		{"missing name", func(a *domain.Address) { a.FullName = " " }, "fullName", "Full name is required"},
		{"missing phone", func(a *domain.Address) { a.Phone = "" }, "phone", "Phone number is required"},
		{"short phone", func(a *domain.Address) { a.Phone = "98765" }, "phone", "Phone number must be 10 digits"},
		{"missing line", func(a *domain.Address) { a.Line1 = "" }, "addressLine1", "Address is required"},
		{"missing city", func(a *domain.Address) { a.City = "" }, "city", "City is required"},
		{"missing state", func(a *domain.Address) { a.State = "" }, "state", "State is required"},
		{"unknown state", func(a *domain.Address) { a.State = "Atlantis" }, "state", "Select a valid state"},
		{"bad pincode", func(a *domain.Address) { a.Pincode = "5600A1" }, "pincode", "Pincode must be 6 digits"},
		{"bad type", func(a *domain.Address) { a.Type = "CASTLE" }, "addressType", "Address type must be HOME, WORK or OTHER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addr := validAddress()
			tc.mutate(&addr)
			_, err := Validate(addr)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := vErr.Field(tc.field); got != tc.want {
				t.Fatalf("field %s: expected %q, got %q", tc.field, tc.want, got)
			}
		})
	}
}

func TestDefaultSelection(t *testing.T) {
	if _, ok := DefaultSelection(nil); ok {
		t.Fatalf("expected no selection for empty list")
	}
	list := []domain.Address{{ID: "a1"}, {ID: "a2", IsDefault: true}}
	got, _ := DefaultSelection(list)
	if got.ID != "a2" {
		t.Fatalf("expected default a2, got %s", got.ID)
	}
	got, _ = DefaultSelection(list[:1])
	if got.ID != "a1" {
		t.Fatalf("expected first address, got %s", got.ID)
	}
}

type authedSession struct {
	*session.Holder
}

func (authedSession) IsAuthenticated() bool { return true }

func TestBookRoundTrips(t *testing.T) {
	var seen []string
	var posted map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/address/list":
			_, _ = w.Write([]byte(`{"success":true,"data":{"addresses":[{"_id":"a1","full_name":"Asha","is_default":true,"address_type":"work"}]}}`))
		case "/api/address/add":
			_ = json.NewDecoder(r.Body).Decode(&posted)
			_, _ = w.Write([]byte(`{"success":true,"data":{"address":{"id":"a9","fullName":"Asha Rao"}}}`))
		default:
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer ts.Close()

	client, err := apiclient.New(ts.URL, apiclient.WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	holder, err := session.New(session.Deps{Transport: client})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	book, err := New(authedSession{holder}, nil)
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	ctx := context.Background()
	list, err := book.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "a1" || !list[0].IsDefault || list[0].Type != domain.AddressWork {
		t.Fatalf("unexpected list %+v", list)
	}

	created, err := book.Create(ctx, validAddress())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "a9" {
		t.Fatalf("expected created id a9, got %q", created.ID)
	}
	if posted["addressLine1"] != "12 MG Road" || posted["state"] != "Karnataka" {
		t.Fatalf("unexpected payload %v", posted)
	}

	if _, err := book.Create(ctx, domain.Address{}); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := book.Delete(ctx, ""); !errors.Is(err, ErrAddressIDRequired) {
		t.Fatalf("expected ErrAddressIDRequired, got %v", err)
	}
	if err := book.SetDefault(ctx, "a1"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := book.Delete(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{"GET /api/address/list", "POST /api/address/add", "PATCH /api/address/a1/set-default", "DELETE /api/address/a1"}
	if len(seen) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
}
