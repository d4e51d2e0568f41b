package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLineSize bounds a single JSON-lines record. Long multi-turn conversations exceed bufio's 64KiB default.
const maxLineSize = 64 << 20

// Load reads every sample from path. The file may hold a JSON array of samples
// or one JSON sample per line.
func Load(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	samples, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return samples, nil
}

// Decode reads samples from r, detecting array or JSON-lines layout from the first non-space byte.
func Decode(r io.Reader) ([]Sample, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return []Sample{}, nil
	}
	if err != nil {
		return nil, err
	}

	if first == '[' {
		var samples []Sample
		if err := json.NewDecoder(br).Decode(&samples); err != nil {
			return nil, fmt.Errorf("parse JSON array: %w", err)
		}
		return samples, nil
	}

	return decodeLines(br)
}

func decodeLines(r io.Reader) ([]Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)

	samples := []Sample{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var s Sample
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan lines: %w", err)
	}
	return samples, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
