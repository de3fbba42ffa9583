package vision

// extractionPrompt asks the model for a JSON array in the shape the
// extractor's payload normalizer accepts.
const extractionPrompt = `Analyze this bill/invoice and extract ALL items listed.

This could be either:
1. An ITEMIZED INVOICE with product names, quantities, and prices
2. A TAX SUMMARY/ANALYSIS document with HSN/SAC codes and taxable values

For each item/row, extract:
- serial_number: Product serial number, S.No, or item code (if visible)
- item_name: Name/description of the product (if available, otherwise null)
- hsn_code: HSN/SAC code (usually 4-8 digits)
- quantity: The quantity/qty of items (just the number, default to 1 if not visible)
- price: The price/amount/taxable value for this item (just the number)

For TAX SUMMARY documents: Extract each HSN/SAC row with its Taxable Value as the price.

Return ONLY a JSON array with the items. Example formats:

Itemized invoice:
[
  {"serial_number": "1", "item_name": "Samsung TV 55 inch", "hsn_code": "8528", "quantity": 1, "price": 45000},
  {"serial_number": "2", "item_name": "LG Refrigerator", "hsn_code": "8418", "quantity": 2, "price": 32000}
]

Tax summary (HSN-wise):
[
  {"serial_number": null, "item_name": null, "hsn_code": "85285200", "quantity": 1, "price": 16101.70},
  {"serial_number": null, "item_name": null, "hsn_code": "85235100", "quantity": 1, "price": 15254.40}
]

If no items are found, return: []
Do NOT wrap the response in code fences.
Output must begin with "[" and end with "]".`
