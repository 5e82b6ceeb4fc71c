package authentication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestCredentialsRoundTrip(t *testing.T) {
	keyring.MockInit()

	_, err := GetCredentials()
	assert.ErrorIs(t, err, ErrNoStoredKey)

	require.NoError(t, StoreCredentials(&StoredCredentials{APIKey: "k1", ClientID: 7}))
	creds, err := GetCredentials()
	require.NoError(t, err)
	assert.Equal(t, "k1", creds.APIKey)
	assert.Equal(t, int64(7), creds.ClientID)

	require.NoError(t, DeleteCredentials())
	require.NoError(t, DeleteCredentials())
	_, err = GetCredentials()
	assert.ErrorIs(t, err, ErrNoStoredKey)
}
