package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go-localtube/internal/models"

	log "github.com/sirupsen/logrus"
	"lukechampine.com/blake3"
)

// CheckHash verifies a file against provided hashes (BLAKE3, SHA256).
// It returns true if any of the hashes match.
func CheckHash(filepath string, hashes models.Hashes) bool {
	if _, err := os.Stat(filepath); err == nil {
		file, err := os.ReadFile(filepath)
		if err != nil {
			log.WithError(err).Errorf("Error reading file %s for hash check", filepath)
			return false
		}

		if hashes.BLAKE3 != "" {
			blake3Hash := blake3.Sum256(file)
			calculatedBlake3 := strings.ToUpper(hex.EncodeToString(blake3Hash[:]))
			expectedBlake3 := strings.ToUpper(strings.TrimSpace(hashes.BLAKE3))
			if calculatedBlake3 == expectedBlake3 {
				log.WithField("hash", "BLAKE3").Debugf("Hash match for %s", filepath)
				return true
			}
		}

		if hashes.SHA256 != "" {
			sha256Hasher := sha256.New()
			sha256Hasher.Write(file)
			calculatedSha256 := hex.EncodeToString(sha256Hasher.Sum(nil))
			expectedSha256 := strings.ToLower(strings.TrimSpace(hashes.SHA256))
			if expectedSha256 == calculatedSha256 {
				log.WithField("hash", "SHA256").Debugf("Hash match for %s", filepath)
				return true
			}
		}
	} else if !os.IsNotExist(err) {
		log.WithError(err).Warnf("Error stating file %s during hash check", filepath)
	}

	return false
}

// CounterWriter tracks the number of bytes written to the underlying writer
// and reports a monotonically non-decreasing fraction of Total through
// OnProgress. With an unknown Total the fraction stays at 0 until the
// caller reports completion itself.
type CounterWriter struct {
	Writer     io.Writer
	Total      int64
	Written    int64
	OnProgress func(float64)

	last float64
}

// Write implements the io.Writer interface for CounterWriter.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Written += int64(n)
	if cw.OnProgress != nil && cw.Total > 0 {
		frac := float64(cw.Written) / float64(cw.Total)
		if frac > 1 {
			frac = 1
		}
		if frac > cw.last {
			cw.last = frac
			cw.OnProgress(frac)
		}
	}
	return n, err
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// fileNameReplacer maps characters that are unsafe in file names to "-".
var fileNameReplacer = strings.NewReplacer(
	"/", "-", ":", "-", "\\", "-", "?", "-", "*", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
)

// SafeFileName derives a file name from a display title, preserving the
// extension of originalFileName. A title that is empty after trimming
// falls back to the literal "video".
func SafeFileName(title string, originalFileName string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		trimmed = "video"
	}
	sanitized := fileNameReplacer.Replace(trimmed)
	ext := filepath.Ext(originalFileName)
	if ext == "" {
		return sanitized
	}
	return sanitized + ext
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
// Uses standard directory permissions (0700).
func CheckAndMakeDir(dir string) bool {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}
