package util

import (
	"bytes"
	"encoding/base64"
	"os"
	"text/template"

	"github.com/go-faster/errors"
)

// MergeTemplate renders tpl with model. Values are inserted verbatim, nothing is escaped,
// and a placeholder without a matching field is an error.
func MergeTemplate(name, tpl string, model any) ([]byte, error) {

	var funcMap = template.FuncMap{
		"base64": base64.StdEncoding.EncodeToString,
	}

	tmpl, err := template.New(name).Funcs(funcMap).Option("missingkey=error").Parse(tpl)
	if err != nil {
		return nil, errors.Wrapf(err, "parse template %s", name)
	}

	var output bytes.Buffer

	err = tmpl.Execute(&output, model)
	if err != nil {
		return nil, errors.Wrapf(err, "execute template %s", name)
	}
	return output.Bytes(), nil
}

// LoadTemplate returns the file content at path, or fallback when path is empty.
func LoadTemplate(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read template %s", path)
	}
	logger.Debugf("using template override %s", path)
	return string(b), nil
}
