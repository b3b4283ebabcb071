package handlers

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

func TestExtractContact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{
			name: "labelled fields",
			in:   "name: Ann Lee, phone: +1 555-0100, email: ann@example.com, address: 12 Main St, Springfield",
			want: map[string]string{
				"name":    "Ann Lee",
				"phone":   "+1 555-0100",
				"email":   "ann@example.com",
				"address": "12 Main St, Springfield",
			},
		},
		{
			name: "address then confirmation",
			in:   "my address is 12 Main St, confirm purchase",
			want: map[string]string{"address": "12 Main St"},
		},
		{
			name: "natural phrasing",
			in:   "My name is Bob and my phone number is 0771234567",
			want: map[string]string{"name": "Bob", "phone": "0771234567"},
		},
		{
			name: "bare email",
			in:   "reach me at bob@mail.co.uk",
			want: map[string]string{"email": "bob@mail.co.uk"},
		},
		{
			name: "email address is not a postal address",
			in:   "email address: bob@mail.com",
			want: map[string]string{"email": "bob@mail.com"},
		},
		{
			name: "question about address",
			in:   "what address do you need?",
			want: map[string]string{},
		},
		{
			name: "username is not a name",
			in:   "my username rocks",
			want: map[string]string{},
		},
		{
			name: "nothing",
			in:   "show me SUVs under 30k",
			want: map[string]string{},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ExtractContact(tc.in))
		})
	}
}

func TestMergeContactNeverClears(t *testing.T) {
	t.Parallel()

	s := statex.NewSession("s1", "", time.Now())
	s.Collect(statex.FieldPhone, "555-0100")

	set := MergeContact(s, "address: 1 Road, London")
	assert.Equal(t, []string{statex.FieldAddress}, set)
	assert.Equal(t, "1 Road, London", s.Field(statex.FieldAddress))
	assert.Equal(t, "555-0100", s.Field(statex.FieldPhone))

	assert.Empty(t, MergeContact(s, "hello there"))
	assert.Equal(t, "1 Road, London", s.Field(statex.FieldAddress))
}

func TestIsOrderConfirmation(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Confirm", "yes", "Yes I want it", "let's go ahead", "I'll buy it", "place order please"} {
		assert.True(t, IsOrderConfirmation(in), in)
	}
	for _, in := range []string{"", "no thanks", "show me more", "what's the mileage?"} {
		assert.False(t, IsOrderConfirmation(in), in)
	}
}

func TestContainsAddressInfo(t *testing.T) {
	t.Parallel()

	assert.True(t, ContainsAddressInfo("12 Baker Street"))
	assert.True(t, ContainsAddressInfo("Name: Ann"))
	assert.True(t, ContainsAddressInfo("my email is a@b.com"))
	assert.False(t, ContainsAddressInfo("just browsing"))
}

func TestParseSelection(t *testing.T) {
	t.Parallel()

	n, ok := ParseSelection(" 2 ")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	for _, in := range []string{"", "two", "-1", "2.5", "1 2", "#2"} {
		_, ok := ParseSelection(in)
		assert.False(t, ok, in)
	}

	n, ok = ParseSelection("99999999999999999999")
	assert.True(t, ok)
	assert.Equal(t, math.MaxInt, n)
}

func threeCars() []statex.Vehicle {
	return []statex.Vehicle{
		{"make": "Toyota", "model": "RAV4", "year": 2022, "price": 28000.0, "mileage": 12000},
		{"make": "Honda", "model": "CR-V", "year": 2021, "price": 25000.0, "mileage": 15000},
		{"make": "Kia", "model": "Sportage", "year": 2020, "price": 19999.5, "mileage": 40000},
	}
}

func TestSelectVehicleInRange(t *testing.T) {
	t.Parallel()

	s := statex.NewSession("s1", "", time.Now())
	s.LastResults = threeCars()

	reply, handled := SelectVehicle(s, "2")
	require.True(t, handled)
	assert.Contains(t, reply, "Honda CR-V (2021)")
	assert.Contains(t, reply, "Price: $25,000")
	assert.Contains(t, reply, "Mileage: 15,000 km")
	assert.Contains(t, reply, "Delivery address")

	assert.Equal(t, statex.StageVehicleSelected, s.Stage)
	assert.Equal(t, statex.AwaitingAddress, s.Awaiting)
	assert.Equal(t, s.LastResults[1], s.SelectedVehicle)

	// selection is a copy, not a reference
	s.LastResults[1]["price"] = 1.0
	assert.Equal(t, 25000.0, s.SelectedVehicle["price"])
}

func TestSelectVehicleOutOfRange(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"0", "4", "99999999999999999999"} {
		s := statex.NewSession("s1", "", time.Now())
		s.LastResults = threeCars()

		reply, handled := SelectVehicle(s, in)
		require.True(t, handled)
		assert.Equal(t, "Selection "+in+" is out of range. Please choose between 1 and 3.", reply)
		assert.False(t, s.HasVehicle())
		assert.Equal(t, statex.StageInit, s.Stage)
	}
}

func TestSelectVehicleNotClaimed(t *testing.T) {
	t.Parallel()

	s := statex.NewSession("s1", "", time.Now())
	_, handled := SelectVehicle(s, "1")
	assert.False(t, handled, "no results to select from")

	s.LastResults = threeCars()
	_, handled = SelectVehicle(s, "the first one")
	assert.False(t, handled)
}

func TestMarkerPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strict array", "cards\n===CAR_JSON===\n[{\"make\":\"Kia\"},{\"make\":\"VW\"}] trailing", `[{"make":"Kia"},{"make":"VW"}]`},
		{"strict object", `===CAR_JSON=== {"results":[{"make":"Kia"}]}`, `{"results":[{"make":"Kia"}]}`},
		{"flat after garbage", "===CAR_JSON=== [oops {\"make\":\"Kia\"} done", `{"make":"Kia"}`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := MarkerPayload(tc.in, CarMarker)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, got.Raw)
		})
	}

	_, err := MarkerPayload("no marker here", CarMarker)
	assert.True(t, errors.Is(err, contractx.ErrParse))

	_, err = MarkerPayload("===CAR_JSON=== not json at all", CarMarker)
	assert.ErrorIs(t, err, contractx.ErrParse)
}

func TestApplyMarkers(t *testing.T) {
	t.Parallel()

	text := "I found 2 matches.\n" + CarMarker + `[{"make":"Kia","model":"Niro","year":2023,"price":30000},{"make":"VW","model":"ID.4","year":2022,"price":35000}]` +
		"\n" + WebMarker + `[{"title":"EV tax credit","content":"Up to $7,500","url":"https://example.com"}]`

	s := statex.NewSession("s1", "", time.Now())
	upd, err := ApplyMarkers(s, text)
	require.NoError(t, err)
	assert.True(t, upd.Cars)
	assert.True(t, upd.Web)

	require.Len(t, s.LastResults, 2)
	assert.Equal(t, "Kia Niro (2023)", s.LastResults[0].Title())
	require.Len(t, s.LastWebResults, 1)
	assert.Equal(t, "Up to $7,500", s.LastWebResults[0].Snippet)

	assert.Equal(t, "I found 2 matches.", StripMarkers(text))
}

func TestApplyMarkersMalformedKeepsResults(t *testing.T) {
	t.Parallel()

	s := statex.NewSession("s1", "", time.Now())
	s.LastResults = threeCars()

	upd, err := ApplyMarkers(s, "here you go "+CarMarker+" {broken")
	assert.ErrorIs(t, err, contractx.ErrParse)
	assert.False(t, upd.Any())
	assert.Len(t, s.LastResults, 3)
}

func TestStateAnnotation(t *testing.T) {
	t.Parallel()

	s := statex.NewSession("s1", "", time.Now())
	assert.Empty(t, StateAnnotation(s))

	s.SelectVehicle(statex.Vehicle{"make": "Honda", "model": "Civic", "price": 21500})
	assert.Equal(t, "\n[Selected: Honda Civic - $21,500]\n[Need address]", StateAnnotation(s))

	s.Collect(statex.FieldAddress, "1 Road")
	got := StateAnnotation(s)
	assert.Contains(t, got, "[Have address: 1 Road]")
	assert.Contains(t, got, "[READY TO ORDER - User just needs to confirm]")

	s.MarkOrdered("o1", time.Now())
	assert.Empty(t, StateAnnotation(s))
}

func TestDelegatePrompt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hi", DelegatePrompt("", "", "hi"))
	assert.Equal(t, "[Selected: Honda CR-V - $25,000]\n[Need address]\n\nUser: hi\n",
		DelegatePrompt("", "\n[Selected: Honda CR-V - $25,000]\n[Need address]", "hi"))
	got := DelegatePrompt("User: a\nAssistant (supervisor): b", "\n[Need address]", "hi")
	assert.Equal(t, "\nPrevious:\nUser: a\nAssistant (supervisor): b\n\n[Need address]\n\nUser: hi\n", got)
}

func TestOrderMessages(t *testing.T) {
	t.Parallel()

	v := statex.Vehicle{"make": "Honda", "model": "CR-V", "year": 2021, "price": 25000.0}
	msg := OrderSuccessMessage("o-123", v, "12 Main St")
	assert.True(t, strings.HasPrefix(msg, "✅ Order placed successfully!"))
	assert.Contains(t, msg, "Order ID: o-123\nVehicle: Honda CR-V (2021)\nPrice: $25,000\nDelivery to: 12 Main St")

	assert.Equal(t, "To complete your order for the Honda CR-V, I just need your delivery address.\n\nPlease provide your full address.", AskAddressMessage(v))
	assert.Equal(t, "Sorry, there was an error: boom. Please try again.", OrderErrorMessage(errors.New("boom")))
	assert.Equal(t, "n/a", FormatPrice("n/a"))
}
