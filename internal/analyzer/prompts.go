package analyzer

import "fmt"

// Extraction kinds for stage 1. "general" covers every category in one
// pass; the rest are the micro-extraction categories.
const (
	KindGeneral   = "general"
	KindDates     = "dates"
	KindAmounts   = "amounts"
	KindPenalties = "penalties"
	KindMenu      = "menu"
	KindPersonnel = "personnel"
)

// MicroExtractionKinds is the fixed category order for micro-extraction.
var MicroExtractionKinds = []string{KindDates, KindAmounts, KindPenalties, KindMenu, KindPersonnel}

const stage1System = `Sen ihale dokumanlarindan yapilandirilmis veri cikaran bir analiz asistanisin. ` +
	`SADECE gecerli JSON dondur, aciklama yazma. Metinde olmayan hicbir deger uretme. ` +
	`Bulamadigin alanlari bos birak. Her deger icin 0 ile 1 arasinda confidence ver ve ` +
	`degerin gectigi cumleyi context alanina yaz.`

const stage1Shape = `{
  "dates": [{"type": "ihale_tarihi|baslangic|bitis|son_basvuru|teslim", "value": "GG.AA.YYYY", "context": "...", "confidence": 0.9, "source_type": "paragraf|tablo|liste|form|baslik"}],
  "amounts": [{"type": "yaklasik_maliyet|birim_fiyat|gecici_teminat|kesin_teminat", "value": "1.250.000 TL", "context": "...", "confidence": 0.9, "source_type": "paragraf"}],
  "penalties": [{"type": "gecikme|eksik_hizmet|kalite", "rate": "%0,5", "period": "gun", "context": "...", "confidence": 0.8}],
  "menus": {
    "meals": [{"type": "ogun", "value": "kahvalti", "confidence": 0.9}],
    "gramaj": [{"type": "pirinc", "value": "150 gram", "confidence": 0.9}],
    "service_times": [{"type": "ogle", "value": "11:30-13:30", "confidence": 0.8}]
  },
  "personnel": {
    "staff": [{"type": "asci", "value": "4", "confidence": 0.9}],
    "qualifications": [{"type": "asci", "value": "ustalik belgesi", "confidence": 0.7}]
  },
  "critical_fields": {
    "iletisim": {"telefon": "...", "email": "...", "adres": "..."},
    "teminat_oranlari": {"gecici": "%3", "kesin": "%6"},
    "servis_saatleri": {"kahvalti": "07:00-09:00"},
    "mali_kriterler": {"is_deneyimi": "..."},
    "tahmini_bedel": {"tutar": "..."}
  }
}`

var categoryInstructions = map[string]string{
	KindDates:     `Sadece tarihleri cikar: ihale tarihi, ise baslama, is bitis, son basvuru, teslim tarihleri. Sadece "dates" alanini doldur.`,
	KindAmounts:   `Sadece parasal tutarlari cikar: yaklasik maliyet, birim fiyatlar, gecici ve kesin teminat tutarlari. Sadece "amounts" alanini doldur.`,
	KindPenalties: `Sadece ceza hukumlerini cikar: ceza turu, orani ve uygulama periyodu. Sadece "penalties" alanini doldur.`,
	KindMenu:      `Sadece menu bilgilerini cikar: ogunler, gramaj degerleri ve servis saatleri. Sadece "menus" alanini doldur.`,
	KindPersonnel: `Sadece personel gereksinimlerini cikar: unvan basina sayi ve nitelik sartlari. Sadece "personnel" alanini doldur.`,
}

func stage1Prompt(kind, heading, content string) string {
	instruction := `Asagidaki ihale dokumani parcasindan tum alanlari cikar.`
	if inst, ok := categoryInstructions[kind]; ok {
		instruction = inst
	}
	ctx := ""
	if heading != "" {
		ctx = fmt.Sprintf("Bolum basligi: %s\n\n", heading)
	}
	return fmt.Sprintf(`%s

Su JSON semasini kullan:
%s

%sMetin:
---
%s
---`, instruction, stage1Shape, ctx, content)
}

const stage2System = `Sen ihale dokumani analiz sonuclarini birlestiren bir sentez asistanisin. ` +
	`Sana parca parca cikarilmis JSON sonuclari verilecek; ham dokuman metni verilmeyecek. ` +
	`SADECE verilen sonuclarda gecen degerleri kullan, yeni deger uretme. ` +
	`Ayni alanin farkli degerlerini birlestirme, en guvenilir olani sec ama digerlerini silme. ` +
	`SADECE gecerli JSON dondur.`

func stage2Prompt(summaries string) string {
	return fmt.Sprintf(`Asagida bir ihale dokumaninin parca bazli analiz sonuclari var.
Bunlari tek bir tutarli dokuman analizine birlestir. Ayni JSON semasini koru ve
"ozet" alanina 2-3 cumlelik Turkce ozet ekle. Kaynak parca numaralarini
(source_chunk_id) aynen koru.

Parca sonuclari:
---
%s
---`, summaries)
}

func singleStagePrompt(content string) string {
	return fmt.Sprintf(`Asagidaki kisa ihale dokumanini tek gecicte analiz et.

Su JSON semasini kullan ve "ozet" alanina 2-3 cumlelik Turkce ozet ekle:
%s

Metin:
---
%s
---`, stage1Shape, content)
}

// FieldPrompts are the narrow single-field prompts used by gap filling.
// Each asks for exactly one critical field and nothing else.
var FieldPrompts = map[string]string{
	"iletisim": `Asagidaki metinden SADECE iletisim bilgilerini cikar.
JSON dondur: {"telefon": "...", "email": "...", "adres": "..."}
Bulamadigin alana "Belirtilmemis" yaz.`,
	"teminat_oranlari": `Asagidaki metinden SADECE teminat oranlarini cikar.
JSON dondur: {"gecici": "%...", "kesin": "%..."}
Bulamadigin alana "Belirtilmemis" yaz.`,
	"servis_saatleri": `Asagidaki metinden SADECE yemek servis saatlerini cikar.
JSON dondur: {"kahvalti": "...", "ogle": "...", "aksam": "..."}
Bulamadigin alana "Belirtilmemis" yaz.`,
	"mali_kriterler": `Asagidaki metinden SADECE mali yeterlilik kriterlerini cikar.
JSON dondur: {"is_deneyimi": "...", "ciro_sarti": "...", "banka_referansi": "..."}
Bulamadigin alana "Belirtilmemis" yaz.`,
	"tahmini_bedel": `Asagidaki metinden SADECE tahmini bedel / yaklasik maliyet bilgisini cikar.
JSON dondur: {"tutar": "...", "para_birimi": "TL"}
Bulamadigin alana "Belirtilmemis" yaz.`,
}

// FieldPrompt builds the full gap-fill prompt for one critical field.
func FieldPrompt(field, content string) string {
	return fmt.Sprintf(`%s

Metin:
---
%s
---`, FieldPrompts[field], content)
}
