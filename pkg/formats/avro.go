package formats

import (
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/comet/pkg/compression"
	"github.com/ajitpratap0/comet/pkg/errors"
	jsonpool "github.com/ajitpratap0/comet/pkg/json"
	"github.com/ajitpratap0/comet/pkg/schema"
)

// avroBatchRows is the append batch size used during export.
const avroBatchRows = 4096

// AvroCompressionName maps a compression algorithm onto the OCF codec
// names. Avro containers support only none, deflate and snappy.
func AvroCompressionName(alg compression.Algorithm) (string, error) {
	switch alg {
	case compression.None:
		return "null", nil
	case compression.Deflate:
		return "deflate", nil
	case compression.Snappy:
		return "snappy", nil
	default:
		return "", errors.New(errors.ErrorTypeConfig, "avro containers support only none, deflate and snappy compression").
			WithDetail("algorithm", string(alg))
	}
}

// avroName maps a column name onto the Avro name grammar
// [A-Za-z_][A-Za-z0-9_]*, replacing every other byte with an underscore.
func avroName(name string) string {
	if name == "" {
		return "_"
	}
	b := []byte(name)
	for i, c := range b {
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			b[i] = '_'
		}
	}
	return string(b)
}

// avroFieldNames sanitizes every column name and deduplicates collisions
// the sanitizer may introduce.
func avroFieldNames(cols []*schema.BinaryColumn) []string {
	names := make([]string, len(cols))
	seen := make(map[string]struct{}, len(cols))
	for i, col := range cols {
		name := avroName(col.Name)
		base := name
		for n := 2; ; n++ {
			if _, taken := seen[name]; !taken {
				break
			}
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names
}

func avroType(t schema.ColumnType) string {
	switch t {
	case schema.TypeInt:
		return "long"
	case schema.TypeFloat:
		return "double"
	default:
		return "string"
	}
}

func avroSchemaJSON(cols []*schema.BinaryColumn, names []string) (string, error) {
	fields := make([]map[string]interface{}, len(cols))
	for i, col := range cols {
		fields[i] = map[string]interface{}{
			"name": names[i],
			"type": avroType(col.Type),
		}
	}
	doc := map[string]interface{}{
		"type":   "record",
		"name":   "comet_rows",
		"fields": fields,
	}
	data, err := jsonpool.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "building avro schema")
	}
	return string(data), nil
}

// WriteAvro exports the file as an Avro object container file with
// long/double/string fields in original header order. compressionName is an
// OCF codec name from AvroCompressionName.
func WriteAvro(w io.Writer, f *File, compressionName string) error {
	cols, err := headerOrdered(f.Header)
	if err != nil {
		return err
	}
	names := avroFieldNames(cols)

	schemaJSON, err := avroSchemaJSON(cols, names)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "building avro codec")
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compressionName,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "creating avro writer")
	}

	batch := make([]interface{}, 0, avroBatchRows)
	appendBatch := func() error {
		if err := ocf.Append(batch); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "writing avro block")
		}
		batch = batch[:0]
		return nil
	}

	for row := 0; row < f.Rows(); row++ {
		native := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			switch col.Type {
			case schema.TypeInt:
				native[names[i]] = f.Int64At(col, row)
			case schema.TypeFloat:
				native[names[i]] = f.Float64At(col, row)
			default:
				native[names[i]] = string(f.BytesAt(col, row))
			}
		}
		batch = append(batch, native)
		if len(batch) == avroBatchRows {
			if err := appendBatch(); err != nil {
				return err
			}
		}
	}
	if len(batch) > 0 {
		if err := appendBatch(); err != nil {
			return err
		}
	}
	return nil
}
