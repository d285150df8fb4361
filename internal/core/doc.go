// Package core turns an arbitrary delimited text file into a uniform,
// rewindable stream of rows.
//
// It contains the domain logic independent of any transport: web handlers,
// the CLI and the Postgres loader all go through [Open] or [With].
//
// # Pipeline
//
// Opening a source runs three detection steps, each skipped when the caller
// pins the value in [Options]:
//
//  1. Compression: gzip is recognized by its magic number and decompressed
//     while the source is copied into a private scratch file. A leading
//     UTF-8 BOM is dropped on the way.
//  2. Encoding: the scratch file is read as strict UTF-8; any invalid
//     sequence makes it ISO-8859-1, transcoded to UTF-8 on every read.
//  3. Separator: ';' when the first line contains one, else ','.
//
// The source is read exactly once. Everything afterwards reads the scratch
// file, which [Processor.Close] removes.
//
// # Iteration
//
//	err := core.With("people.csv.gz", core.Options{Headers: true}, func(p *core.Processor) error {
//	    n, err := p.Count(nil)
//	    if err != nil {
//	        return err
//	    }
//	    for row, err := range p.Rows() {
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(row)
//	    }
//	    return nil
//	})
//
// Blank rows (every field empty) are skipped by default. Counting,
// [Processor.Rows] and [Processor.ProcessRange] rewind first, so they can
// be called any number of times.
//
// # Error Handling
//
// Failures to read the source wrap [ErrSourceUnavailable]. Operations on a
// closed Processor return [ErrStreamClosed]. [MapError] turns any of these
// into a user-facing message with a support code.
package core
