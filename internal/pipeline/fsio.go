package pipeline

import (
	"bytes"
	"io"
	"os"
)

func jsonReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
