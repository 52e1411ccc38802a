package backup

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/forgespec/core/internal/models"
)

// encodeRecords serializes records as back-to-back BSON documents, the
// layout mongodump uses for a collection.
func encodeRecords(records []models.SpecRecord) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	for _, rec := range records {
		doc, err := bson.Marshal(rec)
		if err != nil {
			return nil, err
		}
		if _, err := buffer.Write(doc); err != nil {
			return nil, err
		}
	}
	return buffer.Bytes(), nil
}

// decodeRecords walks the concatenated documents by their length prefix.
func decodeRecords(payload []byte) ([]models.SpecRecord, error) {
	records := make([]models.SpecRecord, 0)
	cursor := 0
	for cursor < len(payload) {
		if cursor+4 > len(payload) {
			return nil, fmt.Errorf("invalid bson payload")
		}
		docLen := int(int32(binary.LittleEndian.Uint32(payload[cursor : cursor+4])))
		if docLen <= 0 || cursor+docLen > len(payload) {
			return nil, fmt.Errorf("invalid bson document length")
		}
		var rec models.SpecRecord
		if err := bson.Unmarshal(payload[cursor:cursor+docLen], &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
		cursor += docLen
	}
	return records, nil
}
