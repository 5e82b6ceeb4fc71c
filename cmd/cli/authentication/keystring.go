package authentication

// KeyString keeps the API key used for the websocket handshake and the CDN
// routes in the OS keyring, on the client side.
import (
	"encoding/json"
	"errors"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "mooshihub-cli"
	credsKey    = "api_key"
)

var ErrNoStoredKey = errors.New("no API key stored, run 'mooshi key save <key>' first")

type StoredCredentials struct {
	APIKey   string `json:"api_key"`
	ClientID int64  `json:"client_id,omitempty"`
	Server   string `json:"server,omitempty"`
}

func StoreCredentials(creds *StoredCredentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, credsKey, string(data))
}

func GetCredentials() (*StoredCredentials, error) {
	value, err := keyring.Get(serviceName, credsKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoStoredKey
		}
		return nil, err
	}

	var creds StoredCredentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func DeleteCredentials() error {
	err := keyring.Delete(serviceName, credsKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
