package xtsmock

// DefaultEnums 登录返回的枚举，形状与真实环境一致：平铺数组 + 按交易所分段的嵌套描述
func DefaultEnums() map[string]any {
	return map[string]any{
		"socketEvent": []string{"order", "trade", "position", "logout"},
		"orderSide":   []string{"BUY", "SELL"},
		"orderSource": []string{"WEBAPI", "TWSAPI", "MobileAndroidAPI"},
		"exchangeSegment": map[string]any{
			"NSECM": map[string]any{
				"orderType":   []string{"Limit", "Market", "StopLimit", "StopMarket"},
				"productType": []string{"MIS", "CNC", "CO"},
				"timeInForce": []string{"DAY", "IOC"},
			},
			"NSEFO": map[string]any{
				"orderType":   []string{"Limit", "Market", "StopLimit"},
				"productType": []string{"MIS", "NRML", "CO"},
				"timeInForce": []string{"DAY", "IOC"},
			},
			"MCXFO": map[string]any{
				"orderType":   []string{"Limit", "Market"},
				"productType": []string{"NRML"},
				"timeInForce": []string{"DAY"},
			},
		},
		"exchangeSegmentIDs": []int{1, 2, 51},
	}
}

func profileFixture(userID, clientID string, clientCodes []string) map[string]any {
	if clientID == "" {
		clientID = userID
	}
	return map[string]any{
		"ClientId":               clientID,
		"ClientName":             "Mock Client " + clientID,
		"EmailId":                "mock@example.com",
		"MobileNo":               "9999999999",
		"PAN":                    "ABCDE1234F",
		"IncludeInAutoSquareoff": true,
		"ClientExchangeDetailsList": map[string]any{
			"NSECM": map[string]any{"ClientCode": clientID, "Exchange": "NSECM", "Enabled": true},
			"NSEFO": map[string]any{"ClientCode": clientID, "Exchange": "NSEFO", "Enabled": true},
		},
		"ClientCodes": clientCodes,
	}
}

func balanceFixture() map[string]any {
	return map[string]any{
		"BalanceList": []map[string]any{{
			"limitHeader": "ALL|ALL|ALL",
			"limitObject": map[string]any{
				"RMSSubLimits": map[string]any{
					"cashAvailable":      "100000",
					"collateral":         0,
					"marginUtilized":     "0",
					"netMarginAvailable": "100000",
				},
				"AccountID": "MOCK",
			},
		}},
	}
}

func holdingsFixture(userID string) map[string]any {
	return map[string]any{
		"RMSHoldings": map[string]any{
			"ClientId": userID,
			"Holdings": map[string]any{
				"INE002A01018": map[string]any{
					"ISIN":                    "INE002A01018",
					"HoldingQuantity":         10,
					"BuyAvgPrice":             2450.5,
					"ExchangeNSEInstrumentId": 2885,
				},
			},
		},
	}
}
