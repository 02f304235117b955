package main

import (
	"io"

	"gopkg.in/yaml.v3"
)

func yamlEncode(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
