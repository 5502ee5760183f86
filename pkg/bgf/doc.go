// Package bgf decodes BGF containers: binary files holding a sequence of
// attributed graphs produced by the edit path generator.
//
// # Layout
//
// A container starts with two signed 32-bit integers, the format version
// and the graph count, followed by two sections:
//
//	pass 1, for every graph:
//	    u32 name_len, name bytes (UTF-8)
//	    i32 graph_type
//	    size_t node_count
//	    u32 node_feature_count, then that many (u32 len, bytes) names
//	    size_t edge_count
//	    u32 edge_feature_count, then that many (u32 len, bytes) names
//	pass 2, for every graph in the same order:
//	    node_count*node_feature_count f64 (row-major), if node_feature_count > 0
//	    for every edge: size_t u, size_t v, then edge_feature_count f64
//
// Neither the byte order nor the width of size_t is recorded in the file;
// both come from [Options]. A mismatch usually surfaces as an absurd graph
// count, a short read or unread trailing bytes, all of which are reported
// as CORRUPT_CONTAINER or TRUNCATED_INPUT rather than as silently wrong
// data.
//
// # Decoding
//
// Decoding is two explicit stages sharing one forward-only [Cursor]:
// [ReadCatalog] reads every header, then [Materialize] reads every payload
// into buffers pre-sized from those headers. [Decode] runs both:
//
//	res, err := bgf.DecodeFile(ctx, "MUTAG_edit_paths.bgf", bgf.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	for _, r := range res.Records {
//	    fmt.Println(r.Name(), r.EditPathStart, r.EditPathEnd, r.EditPathStep)
//	}
//
// For seekable sources [MaterializeAt] decodes graphs concurrently, using
// the header sizes to locate each graph's payload region.
//
// # Records
//
// A [Record] holds the header, an optional node feature [Matrix], the
// [EdgeIndex] and an optional edge feature matrix. Absent matrices are nil.
// Graph names follow the pattern <prefix>_<start>_<end>_<step>; the last
// three tokens become EditPathStart, EditPathEnd and EditPathStep, and a
// name with fewer than three tokens is rejected.
package bgf
