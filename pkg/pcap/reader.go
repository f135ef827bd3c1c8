// Package pcap reads Ethernet frames from capture files.
package pcap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Frame is one captured Ethernet frame.
type Frame struct {
	Timestamp time.Time
	Data      []byte
}

// Reader reads frames from a pcap file.
type Reader struct {
	file   *os.File
	reader *pcapgo.Reader
}

// NewReader opens a pcap file. Only Ethernet captures are accepted.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	if r.LinkType() != layers.LinkTypeEthernet {
		f.Close()
		return nil, fmt.Errorf("unsupported link type %v: only ethernet captures can be replayed", r.LinkType())
	}
	return &Reader{file: f, reader: r}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadFrames sends every frame in the file to out and closes out when done.
// A truncated trailing record ends the read without an error.
func (r *Reader) ReadFrames(out chan<- Frame) error {
	defer close(out)
	for {
		data, ci, err := r.reader.ReadPacketData()
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read packet: %w", err)
		}
		out <- Frame{Timestamp: ci.Timestamp, Data: data}
	}
}
