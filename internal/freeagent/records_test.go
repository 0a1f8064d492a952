package freeagent

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Record building", func() {
	var client *Client

	BeforeEach(func() {
		client = NewClient(Config{
			BaseURL:     "https://books.test",
			Credentials: &stubCredentials{token: "token"},
		})
	})

	Describe("BuildBill", func() {
		It("references the counterparty and uses the date for both dated-on and due-on", func() {
			payload := client.BuildBill(Fields{
				Merchant:    "Acme Ltd",
				DatedOn:     "2025-11-09",
				GrossAmount: "12.50",
				TaxAmount:   "2.50",
			}, "https://books.test/v2/contacts/2")

			Expect(payload.Kind).To(Equal(KindBill))
			Expect(payload.endpoint).To(Equal("/v2/bills"))
			Expect(payload.body["contact"]).To(Equal("https://books.test/v2/contacts/2"))
			Expect(payload.body["dated_on"]).To(Equal("2025-11-09"))
			Expect(payload.body["due_on"]).To(Equal("2025-11-09"))
			Expect(payload.body["reference"]).To(Equal("Acme Ltd"))
		})

		It("creates exactly one line item with the fixed default category", func() {
			payload := client.BuildBill(Fields{GrossAmount: "12.50"}, "contact-url")

			items := payload.body["bill_items"].([]map[string]any)
			Expect(items).To(HaveLen(1))
			Expect(items[0]["category"]).To(Equal("https://books.test/v2/categories/285"))
			Expect(items[0]["total_value"]).To(Equal("12.50"))
		})

		It("omits the tax value when absent", func() {
			payload := client.BuildBill(Fields{GrossAmount: "12.50"}, "contact-url")

			items := payload.body["bill_items"].([]map[string]any)
			Expect(items[0]).NotTo(HaveKey("sales_tax_value"))
		})

		It("falls back to a Receipt reference when the merchant is empty", func() {
			payload := client.BuildBill(Fields{GrossAmount: "12.50"}, "contact-url")
			Expect(payload.body["reference"]).To(Equal("Receipt"))
		})
	})

	Describe("BuildExpense", func() {
		It("references the current user with a description and no due date", func() {
			payload := client.BuildExpense(Fields{
				Merchant:    "Acme Ltd",
				DatedOn:     "2025-11-09",
				GrossAmount: "12.50",
			}, "https://books.test/v2/users/7")

			Expect(payload.Kind).To(Equal(KindExpense))
			Expect(payload.endpoint).To(Equal("/v2/expenses"))
			Expect(payload.body["user"]).To(Equal("https://books.test/v2/users/7"))
			Expect(payload.body["description"]).To(Equal("Acme Ltd"))
			Expect(payload.body["gross_value"]).To(Equal("12.50"))
			Expect(payload.body).NotTo(HaveKey("due_on"))
		})

		It("includes the tax value only when present", func() {
			with := client.BuildExpense(Fields{GrossAmount: "12.50", TaxAmount: "2.50"}, "user-url")
			without := client.BuildExpense(Fields{GrossAmount: "12.50"}, "user-url")

			Expect(with.body["sales_tax_value"]).To(Equal("2.50"))
			Expect(without.body).NotTo(HaveKey("sales_tax_value"))
		})
	})
})

var _ = Describe("CreateRecord", func() {
	var (
		server *ghttp.Server
		client *Client
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client = NewClient(Config{BaseURL: server.URL(), Credentials: &stubCredentials{token: "token"}})
	})

	AfterEach(func() {
		server.Close()
	})

	When("the API accepts the bill", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/v2/bills"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusCreated, map[string]any{
					"bill": map[string]string{"url": "https://books.test/v2/bills/42"},
				}),
			))
		})

		It("returns the created record reference", func() {
			payload := client.BuildBill(Fields{GrossAmount: "12.50", DatedOn: "2025-11-09"}, "contact-url")
			record, err := client.CreateRecord(context.Background(), payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.URL).To(Equal("https://books.test/v2/bills/42"))
			Expect(record.Kind).To(Equal(KindBill))
		})
	})

	When("the API responds with a bare reference", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusCreated, map[string]string{
				"url": "https://books.test/v2/expenses/3",
			}))
		})

		It("still resolves the reference", func() {
			payload := client.BuildExpense(Fields{GrossAmount: "9.99"}, "user-url")
			record, err := client.CreateRecord(context.Background(), payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(record.URL).To(Equal("https://books.test/v2/expenses/3"))
		})
	})

	When("the API rejects the record", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusUnprocessableEntity, `{"errors":{"dated_on":"is required"}}`))
		})

		It("returns an UpstreamError carrying the body", func() {
			payload := client.BuildBill(Fields{GrossAmount: "12.50"}, "contact-url")
			_, err := client.CreateRecord(context.Background(), payload)

			var upstreamErr *UpstreamError
			Expect(errors.As(err, &upstreamErr)).To(BeTrue())
			Expect(upstreamErr.Status).To(Equal(http.StatusUnprocessableEntity))
			Expect(upstreamErr.Body).To(ContainSubstring("dated_on"))
		})
	})

	When("the API accepts the record but omits the reference", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusCreated, `{"bill":{}}`))
		})

		It("returns a MissingReferenceError", func() {
			payload := client.BuildBill(Fields{GrossAmount: "12.50"}, "contact-url")
			_, err := client.CreateRecord(context.Background(), payload)

			var missingErr *MissingReferenceError
			Expect(errors.As(err, &missingErr)).To(BeTrue())
		})
	})
})
