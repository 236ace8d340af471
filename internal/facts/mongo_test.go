package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRecordFromDocument(t *testing.T) {
	rec := recordFromDocument("Tulsi", bson.M{
		"Plant Name":          "Tulsi",
		"Botanical Name":      "Ocimum tenuiflorum",
		"Chemical Components": bson.A{"Eugenol", "Ursolic acid"},
		"Medical Uses":        nil,
	})

	assert.Equal(t, "Tulsi", rec.PlantName)
	assert.Equal(t, "Ocimum tenuiflorum", rec.BotanicalName)
	assert.Equal(t, "Eugenol, Ursolic acid", rec.ChemicalComponents)
	assert.Empty(t, rec.MedicinalProperties)

	fact := rec.Fact()
	assert.Equal(t, NotAvailable, fact.MedicinalProperties)
	assert.Equal(t, NotAvailable, fact.MedicalUses)
}
