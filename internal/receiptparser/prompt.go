package receiptparser

// Prompt is the fixed instruction sent with every receipt.
const Prompt = `Analyze this receipt image and extract the following information in JSON format:
{
  "vendor": "store name",
  "date": "YYYY-MM-DD",
  "total": "total amount as number",
  "lineItems": [
    {
      "description": "item description",
      "quantity": "quantity as number",
      "unitPrice": "unit price as number",
      "totalPrice": "total price as number",
      "sku": "product SKU if visible"
    }
  ]
}

Important rules:
- Home Depot "Pro Xtra" lines are discounts for the item directly above them. Apply the discount to that item's price and do not list them as separate line items.
- Return amounts as numbers, not strings.
- If a value cannot be read from the receipt, use null.
- Respond only with the JSON object, no other text.`
