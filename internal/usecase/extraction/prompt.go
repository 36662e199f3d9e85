package extraction

// Instruction is the fixed extraction policy sent as the system message.
// Cue words are listed in Polish and English; most of the traffic is Polish
// e-mail and OCR output.
const Instruction = `You extract invoice data from raw text (e-mails, OCR output, receipts) into the invoice schema.
Fill every field from the document only. Never invent values.

vendor_name
- The issuer of the document: the section labelled "Sprzedawca", "Wystawca", "Seller", "Vendor", or the company in the header or signature.
- Never the buyer ("Nabywca", "Odbiorca", "Buyer", "Bill to").
- Use the full company name as written.

invoice_date
- The issue date ("Data wystawienia", "Invoice date", "Issued").
- When a sale date ("Data sprzedaży") differs from the issue date, use the issue date. Use the sale date only when no issue date exists.
- Output ISO 8601 (YYYY-MM-DD) whatever the input form, e.g. "24 sty 2025" -> "2025-01-24", "24.01.2025" -> "2025-01-24".

items
- One entry per line item, in document order.
- Skip summary, subtotal, VAT breakdown, shipping notes and payment rows ("Suma", "Razem", "Podsumowanie VAT", "Do zapłaty").
- name: the product or service name without catalogue codes (EAN, PKWiU) unless they are part of the name.
- quantity: a whole number. Round fractional quantities to the nearest integer; use 1 for a service or when rounding would give 0.
- price: the unit price, net when the document shows net prices, gross when only gross prices exist (receipts).
  A value labelled as a line total ("razem", "wartość") is not a unit price: divide it by the quantity.

total_amount
- The final gross amount payable ("Do zapłaty", "Razem brutto", "Łącznie do zapłaty", "Total due").
- When several currencies appear, use the main amount of the document.

currency
- An ISO 4217 code (PLN, EUR, USD, GBP, ...).
- Infer it from symbols when no code is printed: zł -> PLN, € -> EUR, $ -> USD, £ -> GBP.

Numbers
- Documents use Polish ("1 200,50", "1.000,00") or international ("1,200.50") notation.
- Output every amount as a plain decimal string with a dot separator and no grouping: "1.000,00 zł" -> "1000.00".

Noise
- Ignore page numbers, footers, bank account numbers, marketing text and greetings.

Consistency
- Check that the sum of quantity * price over the items is consistent with total_amount (allowing for VAT when prices are net).
- When it is not, re-read the lines: a line total mistaken for a unit price or a gross price mistaken for net are the usual causes. Prefer the reading whose numbers add up to total_amount.`
