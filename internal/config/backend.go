package config

// ConfigBackend stores the non-secret config keys. On macOS they live in the
// com.partsbin.app defaults domain, elsewhere in a JSON file under the XDG
// config dir. Secrets never pass through a backend.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetBool(key string) (val bool, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetBool(key string, val bool) error
	Delete(key string) error
}
