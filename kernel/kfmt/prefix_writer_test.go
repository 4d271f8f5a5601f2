package kfmt

import (
	"bytes"
	"errors"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		input string
		exp   string
	}{
		{"", ""},
		{"\n", "prefix: \n"},
		{"no line break anywhere", "prefix: no line break anywhere"},
		{"line feed at the end\n", "prefix: line feed at the end\n"},
		{
			"\nthe big brown\nfog jumped\nover the lazy\ndog",
			"prefix: \nprefix: the big brown\nprefix: fog jumped\nprefix: over the lazy\nprefix: dog",
		},
	}

	var (
		buf bytes.Buffer
		w   = PrefixWriter{Sink: &buf}
	)

	for specIndex, spec := range specs {
		buf.Reset()
		w.SetPrefix("prefix: ")

		wrote, err := w.Write([]byte(spec.input))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if expLen := len(spec.input); expLen != wrote {
			t.Errorf("[spec %d] expected writer to write %d bytes; wrote %d", specIndex, expLen, wrote)
		}

		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected output:\n%q\ngot:\n%q", specIndex, spec.exp, got)
		}
	}
}

func TestPrefixWriterAcrossWrites(t *testing.T) {
	var (
		buf bytes.Buffer
		w   = PrefixWriter{Sink: &buf}
	)

	w.SetPrefix("[%s] %s(%d.%d.%d): ", "hal", "serial", 0, 1, 2)
	if exp, got := "[hal] serial(0.1.2): ", string(w.Prefix()); got != exp {
		t.Fatalf("expected prefix %q; got %q", exp, got)
	}

	Fprintf(&w, "port 0x%x", 0x3f8)
	Fprintf(&w, " ready\n")
	Fprintf(&w, "initialized\n")

	exp := "[hal] serial(0.1.2): port 0x3f8 ready\n[hal] serial(0.1.2): initialized\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected output:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrefixWriterTruncatesPrefix(t *testing.T) {
	var w PrefixWriter

	w.SetPrefix("%s%s", string(bytes.Repeat([]byte{'a'}, maxPrefixLen)), "overflow")
	if exp, got := maxPrefixLen, len(w.Prefix()); got != exp {
		t.Fatalf("expected prefix to be truncated to %d bytes; got %d", exp, got)
	}
}

func TestPrefixWriterErrors(t *testing.T) {
	specs := []string{
		"no line break anywhere",
		"\nthe big brown\nfog jumped\nover the lazy\ndog",
	}

	var (
		expErr = errors.New("write failed")
		w      = PrefixWriter{Sink: writerThatAlwaysErrors{expErr}}
	)

	for specIndex, spec := range specs {
		w.SetPrefix("prefix: ")
		_, err := w.Write([]byte(spec))
		if err != expErr {
			t.Errorf("[spec %d] expected error: %v; got %v", specIndex, expErr, err)
		}
	}
}

type writerThatAlwaysErrors struct {
	err error
}

func (w writerThatAlwaysErrors) Write(_ []byte) (int, error) {
	return 0, w.err
}
