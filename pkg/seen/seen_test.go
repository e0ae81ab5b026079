package seen

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Index", func() {
	var (
		dbPath string
		idx    *Index
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "seen.db")
		var err error
		idx, err = Open(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if idx != nil {
			idx.Close()
		}
	})

	Describe("Digest", func() {
		It("is stable for equal content", func() {
			Expect(Digest([]byte("abc"))).To(Equal(Digest([]byte("abc"))))
			Expect(Digest([]byte("abc"))).NotTo(Equal(Digest([]byte("abd"))))
			Expect(Digest(nil)).To(HaveLen(64))
		})
	})

	When("a digest was never marked", func() {
		It("is not seen", func() {
			seen, err := idx.Seen(Digest([]byte("x")), false)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(BeFalse())
		})

		It("returns ErrNotFound from Get", func() {
			_, err := idx.Get("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	When("a digest was marked as processed", func() {
		var d string

		BeforeEach(func() {
			d = Digest([]byte("receipt"))
			Expect(idx.Mark(d, Entry{Path: "a.png", TransactionNumber: "12165085404"})).To(Succeed())
		})

		It("is seen regardless of retry", func() {
			Expect(idx.Seen(d, false)).To(BeTrue())
			Expect(idx.Seen(d, true)).To(BeTrue())
		})

		It("keeps the entry fields", func() {
			e, err := idx.Get(d)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Path).To(Equal("a.png"))
			Expect(e.TransactionNumber).To(Equal("12165085404"))
			Expect(e.At.IsZero()).To(BeFalse())
		})

		It("survives reopening", func() {
			Expect(idx.Close()).To(Succeed())
			var err error
			idx, err = Open(dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(idx.Len()).To(Equal(1))
		})

		It("can be forgotten", func() {
			Expect(idx.Forget(d)).To(Succeed())
			Expect(idx.Seen(d, false)).To(BeFalse())
		})
	})

	When("a digest was marked as failed", func() {
		var d string

		BeforeEach(func() {
			d = Digest([]byte("blurry"))
			Expect(idx.Mark(d, Entry{Path: "b.jpg", Failed: true, Reason: "could not find amount"})).To(Succeed())
		})

		It("is skipped unless failed files are retried", func() {
			Expect(idx.Seen(d, false)).To(BeTrue())
			Expect(idx.Seen(d, true)).To(BeFalse())
		})
	})
})
