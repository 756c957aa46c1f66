package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	errUnsupportedFormat = errors.New("only .txt files are supported; convert PDF or DOCX to text first")
	errNoContent         = errors.New("contract text is required")
)

// upload is a contract submission after transport decoding
type upload struct {
	FileName string
	Text     string
}

type jsonUpload struct {
	FileName     string `json:"fileName"`
	ContractText string `json:"contractText"`
}

// rejectedExts are document formats the service recognises but does not parse
var rejectedExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".rtf": true, ".odt": true}

// readUpload accepts a multipart "file" field or a JSON body. The body is capped at maxBytes.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r, maxBytes)
	case "application/json", "":
		var req jsonUpload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		if strings.TrimSpace(req.ContractText) == "" {
			return nil, errNoContent
		}
		name := strings.TrimSpace(req.FileName)
		if name == "" {
			name = "contract.txt"
		}
		if rejectedExts[strings.ToLower(filepath.Ext(name))] {
			return nil, errUnsupportedFormat
		}
		return &upload{FileName: name, Text: req.ContractText}, nil
	default:
		return nil, errUnsupportedFormat
	}
}

func readMultipart(r *http.Request, maxBytes int64) (*upload, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("file too large or invalid form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("no file provided")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
		return nil, errUnsupportedFormat
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(content) {
		return nil, errUnsupportedFormat
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil, errNoContent
	}

	return &upload{FileName: filepath.Base(header.Filename), Text: string(content)}, nil
}

// contentHash identifies identical uploads of one user
func contentHash(text string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(hash[:])
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
