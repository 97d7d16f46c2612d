// Package ctf decodes CTF packet headers without building a processing
// graph.
//
// A PacketDecoder parses a trace's metadata file once, then reads the
// header and context of individual packets handed to it as byte slices, for
// example packets received over the network before they are written to a
// trace directory.
//
// # Usage
//
//	lib, err := bt2.Open(bt2.Config{})
//	...
//	dec, err := ctf.NewPacketDecoder(lib, "trace/metadata", ctf.DecoderConfig{})
//	if err != nil {
//		return err
//	}
//	defer dec.Close()
//
//	props, ok, err := dec.PacketProperties(packet)
//
// The decoder relies on libbabeltrace2's internal CTF plugin headers, which
// are pinned to the version reported by bt2.UpstreamVersion.
package ctf
