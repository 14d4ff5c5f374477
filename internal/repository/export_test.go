package repository

// SetupIntegrationDB は外部テストパッケージから統合テスト用DBを取得するためのもの。
var SetupIntegrationDB = setupIntegrationDB
