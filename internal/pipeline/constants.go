package pipeline

const (
	// BatchSize is the number of transactions written per InsertTransactions call.
	BatchSize = 500

	// MaxRowErrors caps how many rejected rows a report keeps in detail.
	MaxRowErrors = 100
)

// headerAliases maps accepted CSV header spellings to canonical column names.
var headerAliases = map[string]string{
	"id":             "id",
	"transaction_id": "id",
	"date":           "date",
	"business_date":  "date",
	"psp":            "psp",
	"category":       "category",
	"client":         "client_name",
	"client_name":    "client_name",
	"currency":       "currency",
	"payment_method": "payment_method",
	"amount":         "amount",
	"commission":     "commission",
	"net":            "net_amount",
	"net_amount":     "net_amount",
	"amount_try":     "amount_try",
	"commission_try": "commission_try",
	"net_amount_try": "net_amount_try",

	"allocation":        "allocation",
	"allocation_amount": "allocation",
	"psp_name":          "psp",
}

var (
	transactionColumns = []string{"date", "amount", "client_name", "currency"}
	allocationColumns  = []string{"date", "psp", "allocation"}
)
