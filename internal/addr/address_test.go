package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	a := MustParse("10.0.0.5/32")
	n := MustParse("10.0.0.0/24")
	n2 := MustParse("10.0.1.0/24")

	assert.True(t, n.Contains(a))
	assert.False(t, n2.Contains(a))
	assert.False(t, a.Contains(n), "host never contains a wider network")
	assert.True(t, n.Contains(n))
	assert.False(t, MustParse("::/0").Contains(a), "families never mix")
}

func TestNewMasksHostBits(t *testing.T) {
	n, err := New("10.0.0.5", 24)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/24", n.String())
	assert.False(t, n.IsHost())

	h, err := New("10.0.0.5", 32)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", h.String())
	assert.True(t, h.IsHost())
	assert.Equal(t, MustParse("10.0.0.5"), h)
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "10.0.0", "10.0.0.0/33", "nope"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestCompareMaskFirst(t *testing.T) {
	as := []Address{
		MustParse("10.0.0.0/24"),
		MustParse("192.168.0.0/16"),
		MustParse("10.0.0.0/8"),
		MustParse("10.0.1.0/24"),
	}
	Sort(as)
	want := []string{"10.0.0.0/8", "192.168.0.0/16", "10.0.0.0/24", "10.0.1.0/24"}
	got := make([]string, 0, len(as))
	for _, a := range as {
		got = append(got, a.String())
	}
	assert.Equal(t, want, got)
}

func TestRoutable(t *testing.T) {
	cases := map[string]bool{
		"193.238.157.1": true,
		"10.1.2.3":      false,
		"192.168.1.1":   false,
		"172.16.0.1":    false,
		"169.254.0.1":   false,
		"127.0.0.1":     false,
		"100.64.0.1":    false,
		"2001:db8::1":   true,
		"fe80::1":       false,
	}
	for s, want := range cases {
		assert.Equal(t, want, MustParse(s).Routable(), s)
	}
}

func TestHosts(t *testing.T) {
	var got []string
	for h := range MustParse("10.0.0.0/30").Hosts() {
		got = append(got, h.String())
	}
	assert.Equal(t, []string{"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3"}, got)
}

func TestTextRoundTrip(t *testing.T) {
	var a Address
	require.NoError(t, a.UnmarshalText([]byte("10.0.0.0/24")))
	b, err := a.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/24", string(b))
}
