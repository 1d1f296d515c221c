package payment

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUPIURI(t *testing.T) {
	u := UPI{VPA: "rks@upi", PayeeName: "RKS QP Maker"}
	uri, err := u.URI(149, "STARTER plan")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "upi://pay?"))

	values, err := url.ParseQuery(strings.TrimPrefix(uri, "upi://pay?"))
	require.NoError(t, err)
	assert.Equal(t, "rks@upi", values.Get("pa"))
	assert.Equal(t, "149.00", values.Get("am"))
	assert.Equal(t, "INR", values.Get("cu"))
	assert.Equal(t, "STARTER plan", values.Get("tn"))

	_, err = UPI{}.URI(149, "")
	assert.Error(t, err)
	_, err = u.URI(0, "")
	assert.Error(t, err)
}

func TestUPIQR(t *testing.T) {
	png, err := UPI{VPA: "rks@upi"}.QR(499, "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
