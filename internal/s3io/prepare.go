package s3io

import (
	"compress/gzip"
	"io"

	"filippo.io/age"
)

// Prepare wraps source in the compression and encryption stages selected,
// returning the stream to upload and the object metadata describing it.
// Encryption is used when secrets holds a passphrase.
//
// The stages run in goroutines joined by pipes; closing the returned reader
// stops them.
func Prepare(source io.Reader, compress bool, secrets *Secrets) (io.ReadCloser, map[string]string, error) {
	mdata := make(map[string]string)
	var closers []io.Closer

	// insert the compressor - it's a writer but we need a reader
	//   so use an io.Pipe with goroutine
	if compress {
		mdata["dirmirror-compress"] = "gzip"

		reader, writer := io.Pipe()
		closers = append(closers, reader)

		go func(writer *io.PipeWriter, source io.Reader) {
			gzwriter := gzip.NewWriter(writer)

			_, err := io.Copy(gzwriter, source)
			if cerr := gzwriter.Close(); err == nil {
				err = cerr
			}
			writer.CloseWithError(err)

		}(writer, source)

		source = reader
	}

	// insert passphrase encryption
	if passkey, passphrase, ok := secrets.Current(); ok {
		recipient, err := age.NewScryptRecipient(passphrase)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}

		mdata["dirmirror-scrypt"] = "age"
		mdata["dirmirror-scrypt-id"] = passkey

		reader, writer := io.Pipe()
		closers = append(closers, reader)

		go func(writer *io.PipeWriter, source io.Reader, recipient age.Recipient) {
			ewriter, err := age.Encrypt(writer, recipient)
			if err != nil {
				writer.CloseWithError(err)
				return
			}

			_, err = io.Copy(ewriter, source)
			if cerr := ewriter.Close(); err == nil {
				err = cerr
			}
			writer.CloseWithError(err)

		}(writer, source, recipient)

		source = reader
	}

	return &stream{Reader: source, closers: closers}, mdata, nil
}

type stream struct {
	io.Reader
	closers []io.Closer
}

func (s *stream) Close() error {
	closeAll(s.closers)
	return nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}
