// Package dynamostore serves configuration from a DynamoDB table holding one
// item per config leaf. Items are keyed by pk = "tenant#region#service#config"
// and sk = "config", with a global secondary index on tenant used to list
// regions.
package dynamostore
