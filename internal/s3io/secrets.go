package s3io

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Secrets holds the passphrases used to encrypt uploads. The file is a YAML
// list of id/passphrase pairs; the last entry is the one used for new
// uploads, older ones are kept so earlier uploads can still be decrypted.
type Secrets struct {
	passkeys    []string
	passphrases map[string]string
}

// Current returns the id and passphrase to encrypt with.
func (s *Secrets) Current() (string, string, bool) {
	if s == nil || len(s.passkeys) == 0 {
		return "", "", false
	}
	passkey := s.passkeys[len(s.passkeys)-1]
	return passkey, s.passphrases[passkey], true
}

// LoadSecrets reads the secrets file. 'default' means
// ~/.dirmirror/secrets.yml. A missing file is not an error: it returns nil
// secrets and uploads are then not encrypted.
func LoadSecrets(secrets_file string) (*Secrets, error) {
	// set the default path
	if secrets_file == "default" {
		u, err := user.Current()
		if err != nil {
			return nil, err
		}
		secrets_file = filepath.Join(u.HomeDir, ".dirmirror", "secrets.yml")
	}

	// check the file permissions
	info, err := os.Stat(secrets_file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	perms := info.Mode()
	if perms&0077 != 0 {
		return nil, &ErrPermissionsTooOpen{
			msg: fmt.Sprintf("Permissions on secrets file are too open: %#o", perms.Perm()),
		}
	}

	data, err := os.ReadFile(secrets_file)
	if err != nil {
		return nil, err
	}

	type Data struct {
		Id         string
		Passphrase string
	}
	var raw []Data

	err = yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 {
		return nil, &ErrNoSecretsFound{
			file: secrets_file,
		}
	}

	secrets := Secrets{
		passphrases: make(map[string]string),
	}
	for _, entry := range raw {
		secrets.passkeys = append(secrets.passkeys, entry.Id)
		secrets.passphrases[entry.Id] = entry.Passphrase
	}

	return &secrets, nil
}
