package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const serverIDFile = ".server_id"

// GetPersistentServerID identifica este nodo ante los demás (Valkey pub/sub, health).
// Orden: override, archivo guardado en storagePath, hostname, id aleatorio.
// El id derivado se guarda para sobrevivir reinicios.
func GetPersistentServerID(override, storagePath string) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}

	idFile := filepath.Join(storagePath, serverIDFile)
	if data, err := os.ReadFile(idFile); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := ""
	if host, err := os.Hostname(); err == nil && host != "localhost" {
		if clean := sanitizeHost(host); clean != "" {
			id = "azcrm-" + clean
		}
	}
	if id == "" {
		id = "azcrm-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}

	if err := os.MkdirAll(storagePath, 0o755); err == nil {
		if err := os.WriteFile(idFile, []byte(id), 0o644); err != nil {
			logrus.Warnf("[APP] Could not persist server id: %v", err)
		}
	}
	return id
}

func sanitizeHost(host string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, host)
}
