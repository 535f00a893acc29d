package storage

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic - первые байты кадра zstd
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec кодирует записи в JSON и при необходимости сжимает их zstd.
// Decode распознаёт оба формата, так что флаг сжатия можно менять без миграции.
type Codec struct {
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewCodec создаёт кодек. При compress == false записи пишутся чистым JSON.
func NewCodec(compress bool) (*Codec, error) {
	c := &Codec{}
	var err error
	if compress {
		c.compressor, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("не удалось создать компрессор: %w", err)
		}
	}
	c.decompressor, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать декомпрессор: %w", err)
	}
	return c, nil
}

// Compressed сообщает, сжимает ли кодек записи
func (c *Codec) Compressed() bool {
	return c.compressor != nil
}

// Encode сериализует запись
func (c *Codec) Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации тика %d: %w", rec.Tick, err)
	}
	if c.compressor != nil {
		data = c.compressor.EncodeAll(data, nil)
	}
	return data, nil
}

// Decode восстанавливает запись
func (c *Codec) Decode(data []byte) (Record, error) {
	if isZstd(data) {
		decompressed, err := c.decompressor.DecodeAll(data, nil)
		if err != nil {
			return Record{}, fmt.Errorf("ошибка распаковки: %w", err)
		}
		data = decompressed
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("ошибка десериализации: %w", err)
	}
	return rec, nil
}

// Close освобождает ресурсы кодека
func (c *Codec) Close() {
	if c.compressor != nil {
		c.compressor.Close()
	}
	c.decompressor.Close()
}

func isZstd(data []byte) bool {
	if len(data) < len(zstdMagic) {
		return false
	}
	for i, b := range zstdMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}
