package handlers

import "gopkg.in/yaml.v2"

func yamlUnmarshalForTest(doc string, v interface{}) error {
	return yaml.Unmarshal([]byte(doc), v)
}
