// Package core converts tabular data from one schema to another.
//
// A [Converter] reads rows of a source [schema.Schema], hands each one as a
// [schema.Record] to an [Observer], and writes whatever the observer emits
// as rows of the destination schema. It is synchronous and processes rows
// strictly in input order, holding one row in memory at a time plus the set
// of primary keys written so far.
//
// # Observers
//
// An Observer sees the validated input header once, then every record, then
// the end of input. For each record it may emit zero, one or many output
// records, which is how rows are dropped, mapped or fanned out. A plain
// function can be adapted with [Func]:
//
//	obs := core.Func(func(rec schema.Record) ([]schema.Record, error) {
//	    return []schema.Record{{"id": rec["org_id"], "name": rec["name"]}}, nil
//	})
//
// Named observers are registered with [Register] so the CLI and HTTP server
// can look them up by key.
//
// # Primary Keys
//
// When the destination schema declares a primary key, every output row's key
// tuple is checked. Keys with a nil or empty component are invalid; keys seen
// earlier in the same conversion are duplicates. [RejectPolicy] decides
// whether such rows are dropped, kept with a warning, or abort the run.
//
// # Inputs and Outputs
//
//   - [Converter.EachRow]: CSV in, CSV out
//   - [Converter.ConvertFiles]: file to file, replacing the output atomically
//   - [Converter.JSONConvert]: a JSON array of objects in, CSV out
//   - [Converter.ConvertToTable]: CSV in, Postgres COPY out, in one transaction
//   - [Converter.Preview]: a dry run over the first rows
//   - [Converter.Transform]: decoded records in, any [RowWriter] out
//
// Every input has a leading UTF-8 byte order mark stripped and invalid
// UTF-8 replaced with U+FFFD before it is parsed. Any failure is returned
// as a [ConversionError] carrying the input row number and both schema
// ids; [MapError] turns it into a coded message for users.
package core
