package retrieval

// Stop-word lists for the supported tokenizer languages. The Indonesian list
// mixes formal and colloquial forms because user queries arrive in both.

var englishStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"of": {}, "at": {}, "by": {}, "for": {}, "with": {}, "about": {},
	"against": {}, "between": {}, "into": {}, "through": {}, "during": {},
	"before": {}, "after": {}, "above": {}, "below": {}, "to": {}, "from": {},
	"up": {}, "down": {}, "in": {}, "out": {}, "on": {}, "off": {}, "over": {},
	"under": {}, "again": {}, "further": {}, "then": {}, "once": {}, "here": {},
	"there": {}, "when": {}, "where": {}, "why": {}, "how": {}, "all": {},
	"any": {}, "both": {}, "each": {}, "few": {}, "more": {}, "most": {},
	"other": {}, "some": {}, "such": {}, "not": {}, "only": {}, "own": {},
	"same": {}, "than": {}, "too": {}, "very": {}, "can": {}, "will": {},
	"just": {}, "should": {}, "now": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "what": {}, "which": {}, "who": {}, "whom": {}, "was": {},
	"were": {}, "are": {}, "is": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"you": {}, "your": {}, "yours": {}, "they": {}, "them": {}, "their": {},
	"our": {}, "ours": {}, "its": {}, "his": {}, "her": {}, "hers": {},
}

var indonesianStopwords = map[string]struct{}{
	"yang": {}, "dan": {}, "di": {}, "ke": {}, "dari": {}, "untuk": {},
	"dengan": {}, "adalah": {}, "ini": {}, "itu": {}, "ada": {}, "atau": {},
	"juga": {}, "pada": {}, "dalam": {}, "oleh": {}, "sebagai": {},
	"karena": {}, "jika": {}, "kalau": {}, "tetapi": {}, "tapi": {},
	"tidak": {}, "bukan": {}, "sudah": {}, "udah": {}, "belum": {},
	"akan": {}, "bisa": {}, "dapat": {}, "harus": {}, "lebih": {},
	"sangat": {}, "hanya": {}, "banyak": {}, "semua": {}, "saya": {},
	"aku": {}, "kamu": {}, "anda": {}, "dia": {}, "mereka": {}, "kami": {},
	"kita": {}, "apa": {}, "siapa": {}, "bagaimana": {}, "gimana": {},
	"kapan": {}, "dimana": {}, "mengapa": {}, "kenapa": {}, "berapa": {},
	"ya": {}, "dong": {}, "nih": {}, "sih": {}, "deh": {}, "lagi": {},
	"saat": {}, "ketika": {}, "sebuah": {}, "para": {}, "antara": {},
	"seperti": {}, "tentang": {}, "setelah": {}, "sebelum": {},
}

func stopwordsFor(language string) map[string]struct{} {
	if language == "id" {
		return indonesianStopwords
	}
	return englishStopwords
}
