package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveProcessed", func() {
		var (
			processed *ProcessedReceipt
			err       error
		)

		BeforeEach(func() {
			processed = &ProcessedReceipt{
				ID:          "test-id",
				Kind:        "bill",
				Merchant:    "Acme Stationery",
				DatedOn:     "2024-01-15",
				GrossAmount: "25.99",
				TaxAmount:   "4.33",
				RecordURL:   "https://api.example.com/v2/bills/1",
				AttachedVia: "multipart-file",
				Filename:    "test.jpg",
				ContentType: "image/jpeg",
				CreatedAt:   time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveProcessed(processed)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the entry to the database", func() {
				saved, getErr := db.GetProcessed("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
			})
		})
	})

	Describe("GetProcessed", func() {
		var (
			entryID   string
			processed *ProcessedReceipt
			err       error
		)

		JustBeforeEach(func() {
			processed, err = db.GetProcessed(entryID)
		})

		When("the entry exists", func() {
			BeforeEach(func() {
				entryID = "test-id"
				entry := &ProcessedReceipt{
					ID:          "test-id",
					Kind:        "expense",
					Merchant:    "Acme Stationery",
					DatedOn:     "2024-01-15",
					GrossAmount: "25.99",
					RecordURL:   "https://api.example.com/v2/expenses/1",
					CreatedAt:   time.Now(),
				}
				Expect(db.SaveProcessed(entry)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct entry ID", func() {
				Expect(processed.ID).To(Equal("test-id"))
			})

			It("should return the correct merchant", func() {
				Expect(processed.Merchant).To(Equal("Acme Stationery"))
			})

			It("should return the correct record URL", func() {
				Expect(processed.RecordURL).To(Equal("https://api.example.com/v2/expenses/1"))
			})
		})

		When("the entry does not exist", func() {
			var expectedErr error

			BeforeEach(func() {
				entryID = "nonexistent"
				expectedErr = errors.New("processed receipt not found: nonexistent")
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(expectedErr))
			})
		})
	})

	Describe("ListProcessed", func() {
		var (
			processed []*ProcessedReceipt
			err       error
		)

		JustBeforeEach(func() {
			processed, err = db.ListProcessed()
		})

		When("entries exist", func() {
			BeforeEach(func() {
				entry1 := &ProcessedReceipt{
					ID:        "id1",
					Merchant:  "Acme Stationery",
					CreatedAt: time.Now(),
				}
				entry2 := &ProcessedReceipt{
					ID:        "id2",
					Merchant:  "Beta Cafe",
					CreatedAt: time.Now(),
				}
				Expect(db.SaveProcessed(entry1)).NotTo(HaveOccurred())
				Expect(db.SaveProcessed(entry2)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all entries", func() {
				Expect(processed).To(HaveLen(2))
			})
		})

		When("no entries exist", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an empty list", func() {
				Expect(processed).To(BeEmpty())
			})
		})
	})

	Describe("DeleteProcessed", func() {
		var (
			entryID string
			err     error
		)

		JustBeforeEach(func() {
			err = db.DeleteProcessed(entryID)
		})

		When("the entry exists", func() {
			BeforeEach(func() {
				entryID = "test-id"
				entry := &ProcessedReceipt{
					ID:        "test-id",
					Merchant:  "Acme Stationery",
					CreatedAt: time.Now(),
				}
				Expect(db.SaveProcessed(entry)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the entry from the database", func() {
				_, getErr := db.GetProcessed("test-id")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("the entry does not exist", func() {
			BeforeEach(func() {
				entryID = "nonexistent"
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			err := db.Close()
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
