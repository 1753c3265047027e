package mysql

// Note: `text` is reserved; keep it quoted everywhere.
const reviewColumns = "id, source, listing_id, listing_name, type, channel, status, rating, categories, `text`, " +
	"private_feedback, submitted_at, author_name, author_url, approved, external_ids"

const insertReviewsPrefix = "INSERT INTO reviews\n  (" + reviewColumns + ")\nVALUES "

const reviewPlaceholders = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

// Seeding refreshes content and leaves approved alone so re-running the
// ingestor never un-publishes a moderated review.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  source           = VALUES(source),\n" +
	"  listing_id       = VALUES(listing_id),\n" +
	"  listing_name     = VALUES(listing_name),\n" +
	"  type             = VALUES(type),\n" +
	"  channel          = VALUES(channel),\n" +
	"  status           = VALUES(status),\n" +
	"  rating           = VALUES(rating),\n" +
	"  categories       = VALUES(categories),\n" +
	"  `text`           = VALUES(`text`),\n" +
	"  private_feedback = VALUES(private_feedback),\n" +
	"  submitted_at     = VALUES(submitted_at),\n" +
	"  author_name      = VALUES(author_name),\n" +
	"  author_url       = VALUES(author_url),\n" +
	"  external_ids     = COALESCE(VALUES(external_ids), reviews.external_ids)\n"

// Merge-on-write: materialize the row or, if another request won the race,
// only set its flag. Either way the single statement is atomic per id.
const upsertApprovalSQL = insertReviewsPrefix + reviewPlaceholders +
	" ON DUPLICATE KEY UPDATE approved = VALUES(approved)"

const setApprovedSQL = `UPDATE reviews SET approved = ? WHERE id = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getReviewSQL = "SELECT " + reviewColumns + " FROM reviews WHERE id = ?"

const listApprovedSQL = "SELECT " + reviewColumns + " FROM reviews WHERE approved = 1 ORDER BY submitted_at DESC, id ASC"

const approvalStatesSQL = `SELECT id, approved FROM reviews`
