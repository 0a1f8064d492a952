package freeagent

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("ResolveContact", func() {
	var (
		server *ghttp.Server
		client *Client
		url    string
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client = NewClient(Config{
			BaseURL:     server.URL(),
			UserAgent:   "receipt-relay-test",
			Credentials: &stubCredentials{token: "token"},
		})
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		url, err = client.ResolveContact(context.Background(), "Acme Ltd")
	})

	When("a contact with a matching organisation name exists", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/v2/contacts", "view=active"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer token"),
				ghttp.VerifyHeaderKV("User-Agent", "receipt-relay-test"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"contacts": []map[string]string{
						{"url": "https://books.test/v2/contacts/1", "organisation_name": "Other Co"},
						{"url": "https://books.test/v2/contacts/2", "organisation_name": "ACME LTD"},
					},
				}),
			))
		})

		It("should return its reference without creating anything", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://books.test/v2/contacts/2"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("no contact matches", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"contacts": []map[string]string{},
				}),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("POST", "/v2/contacts"),
					ghttp.VerifyJSON(`{"contact":{"organisation_name":"Acme Ltd","first_name":"Acme Ltd"}}`),
					ghttp.RespondWithJSONEncoded(http.StatusCreated, map[string]any{
						"contact": map[string]string{"url": "https://books.test/v2/contacts/9"},
					}),
				),
			)
		})

		It("should create the contact with the name as both name fields", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://books.test/v2/contacts/9"))
		})
	})

	When("the search fails upstream", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusBadGateway, "gateway error"))
		})

		It("should return an UpstreamError with the status", func() {
			var upstreamErr *UpstreamError
			Expect(errors.As(err, &upstreamErr)).To(BeTrue())
			Expect(upstreamErr.Status).To(Equal(http.StatusBadGateway))
			Expect(upstreamErr.Operation).To(Equal("contact search"))
		})
	})

	When("creation succeeds but the response omits a reference", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"contacts": []map[string]string{}}),
				ghttp.RespondWithJSONEncoded(http.StatusCreated, map[string]any{"contact": map[string]string{}}),
			)
		})

		It("should return a MissingReferenceError", func() {
			var missingErr *MissingReferenceError
			Expect(errors.As(err, &missingErr)).To(BeTrue())
		})
	})
})

var _ = Describe("CurrentUserURL", func() {
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

	When("the lookup succeeds", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("GET", "/v2/users/me"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"user": map[string]string{"url": "https://books.test/v2/users/7"},
				}),
			))
		})

		It("returns the user's own reference", func() {
			url, err := client.CurrentUserURL(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://books.test/v2/users/7"))
		})
	})

	When("the response has no user reference", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{}`))
		})

		It("returns a MissingReferenceError", func() {
			_, err := client.CurrentUserURL(context.Background())
			var missingErr *MissingReferenceError
			Expect(errors.As(err, &missingErr)).To(BeTrue())
		})
	})
})
