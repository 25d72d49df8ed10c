package g2p

import (
	"strings"
	"unicode"
)

// persianMap maps Persian letters onto the ARPAbet-style symbol set, with KH
// and GH extensions for sounds English lacks.
var persianMap = map[rune]string{
	'ا': "AA", 'آ': "AA", 'ب': "B", 'پ': "P", 'ت': "T", 'ث': "S",
	'ج': "JH", 'چ': "CH", 'ح': "HH", 'خ': "KH", 'د': "D", 'ذ': "Z",
	'ر': "R", 'ز': "Z", 'ژ': "ZH", 'س': "S", 'ش': "SH", 'ص': "S",
	'ض': "Z", 'ط': "T", 'ظ': "Z", 'ع': "AH", 'غ': "GH", 'ف': "F",
	'ق': "G", 'ک': "K", 'گ': "G", 'ل': "L", 'م': "M", 'ن': "N",
	'و': "V", 'ه': "HH", 'ی': "Y",
}

// PersianWords maps each character directly; unknown characters become "AH".
func PersianWords(words []string) []string {
	var seq []string
	for _, w := range words {
		for _, r := range w {
			if p, ok := persianMap[r]; ok {
				seq = append(seq, p)
			} else {
				seq = append(seq, "AH")
			}
		}
	}
	return seq
}

var germanReplacer = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

var germanConsonants = map[rune]string{
	'b': "B", 'c': "K", 'd': "D", 'f': "F", 'g': "G", 'h': "HH",
	'j': "JH", 'k': "K", 'l': "L", 'm': "M", 'n': "N", 'p': "P",
	'q': "K", 'r': "R", 's': "S", 't': "T", 'v': "V", 'w': "V",
	'x': "K", 'y': "Y", 'z': "Z",
}

// GermanWords expands umlauts and maps letters; w is voiced as V and
// non-letters are skipped.
func GermanWords(words []string) []string {
	var seq []string
	for _, w := range words {
		wl := germanReplacer.Replace(strings.ToLower(w))
		for _, r := range wl {
			if v, ok := englishVowels[r]; ok {
				seq = append(seq, v)
			} else if !unicode.IsLetter(r) {
				continue
			} else if c, ok := germanConsonants[r]; ok {
				seq = append(seq, c)
			} else {
				seq = append(seq, "S")
			}
		}
	}
	return seq
}
